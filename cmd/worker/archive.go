package main

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"docaudit/internal/audit/domain"
	"docaudit/internal/telemetry/producer"
)

type archiver interface {
	Create(ctx context.Context, rec *domain.AuditRecord) error
}

type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

const writeTimeout = 10 * time.Second

var (
	retryBase = 500 * time.Millisecond
	retryMax  = 30 * time.Second
)

// archiveMessage stores the record carried by msg and then commits its offset.
// Undecodable messages are committed without being stored. A failed write is
// retried until it succeeds or ctx is cancelled, and the offset stays
// uncommitted so the record is redelivered after a restart.
func archiveMessage(ctx context.Context, archive archiver, offsets committer, msg kafka.Message) error {
	rec, err := producer.DecodeRecord(msg.Value)
	if err != nil {
		log.Printf("worker: skipping message at offset %d: %v", msg.Offset, err)
		return offsets.CommitMessages(ctx, msg)
	}

	wait := retryBase
	for {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = archive.Create(writeCtx, rec)
		cancel()
		if err == nil {
			break
		}
		log.Printf("worker: archive audit %s failed, retrying in %s: %v", rec.ID, wait, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if wait *= 2; wait > retryMax {
			wait = retryMax
		}
	}
	return offsets.CommitMessages(ctx, msg)
}
