package producer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"docaudit/internal/audit/domain"
)

const writeTimeout = 5 * time.Second

// KafkaProducer implements Producer using segmentio/kafka-go.
// Messages are keyed by item id so the records of one document stay ordered within a partition.
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaProducer creates a Kafka producer that writes audit records to the given topic.
// It returns nil when brokers or topic are empty. Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer, topic: topic}
}

// Emit serializes the record as JSON and writes it to the Kafka topic.
func (p *KafkaProducer) Emit(ctx context.Context, rec *domain.AuditRecord) error {
	if p == nil || p.writer == nil || rec == nil {
		return nil
	}
	msg, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		log.Printf("producer: kafka emit of audit %s failed: %v", rec.ID, err)
		return err
	}
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// EncodeRecord builds the Kafka message for rec.
func EncodeRecord(rec *domain.AuditRecord) (kafka.Message, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("producer: encode audit %s: %w", rec.ID, err)
	}
	return kafka.Message{
		Key:   []byte(rec.ItemID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "item_name", Value: []byte(rec.ItemName)},
		},
	}, nil
}

// DecodeRecord parses a message written by EncodeRecord.
func DecodeRecord(value []byte) (*domain.AuditRecord, error) {
	var rec domain.AuditRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("producer: decode audit: %w", err)
	}
	if rec.ID == "" {
		return nil, errors.New("producer: decode audit: missing id")
	}
	return &rec, nil
}
