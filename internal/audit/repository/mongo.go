package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docaudit/internal/audit/domain"
	"docaudit/internal/db"
)

// MongoRepository stores audit records in a document collection next to the audited data.
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoRepository returns a repository backed by coll.
func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll, now: time.Now}
}

// EnsureIndexes creates the lookup index used by ListByItem.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "itemName", Value: 1}, {Key: "itemId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

type auditDocument struct {
	ID        string            `bson:"_id"`
	ItemID    any               `bson:"itemId"`
	ItemName  string            `bson:"itemName"`
	Changes   map[string]bson.M `bson:"changes"`
	User      string            `bson:"user"`
	CreatedAt time.Time         `bson:"createdAt"`
	UpdatedAt time.Time         `bson:"updatedAt"`
}

// Create inserts rec.
func (r *MongoRepository) Create(ctx context.Context, rec *domain.AuditRecord) error {
	if rec == nil || rec.ID == "" {
		return errors.New("audit: record id is required")
	}
	stamp(rec, r.now)
	_, err := r.coll.InsertOne(ctx, toDocument(rec))
	return err
}

// GetByID returns the record for id, or nil if not found.
func (r *MongoRepository) GetByID(ctx context.Context, id string) (*domain.AuditRecord, error) {
	var doc auditDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return fromDocument(&doc), nil
}

// ListByItem returns the records of one document, newest first.
func (r *MongoRepository) ListByItem(ctx context.Context, itemName, itemID string, limit, offset int32) ([]*domain.AuditRecord, error) {
	filter := bson.D{{Key: "itemName", Value: itemName}, {Key: "itemId", Value: itemIDValue(itemID)}}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*domain.AuditRecord
	for cur.Next(ctx) {
		var doc auditDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("audit: decode record: %w", err)
		}
		out = append(out, fromDocument(&doc))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// itemIDValue stores hex object ids as ObjectIDs so they match the audited document's _id type.
func itemIDValue(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func toDocument(rec *domain.AuditRecord) *auditDocument {
	changes := make(map[string]bson.M, len(rec.Changes))
	for k, e := range rec.Changes {
		changes[k] = e.Fields()
	}
	return &auditDocument{
		ID:        rec.ID,
		ItemID:    itemIDValue(rec.ItemID),
		ItemName:  rec.ItemName,
		Changes:   changes,
		User:      rec.User,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func fromDocument(doc *auditDocument) *domain.AuditRecord {
	changes := make(domain.ChangeMap, len(doc.Changes))
	for k, m := range doc.Changes {
		changes[k] = domain.EntryFromFields(db.PlainDocument(m))
	}
	itemID := ""
	switch v := doc.ItemID.(type) {
	case primitive.ObjectID:
		itemID = v.Hex()
	case string:
		itemID = v
	case nil:
	default:
		itemID = fmt.Sprint(v)
	}
	return &domain.AuditRecord{
		ID:        doc.ID,
		ItemID:    itemID,
		ItemName:  doc.ItemName,
		Changes:   changes,
		User:      doc.User,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
}
