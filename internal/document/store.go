// Package document is the storage port for audited documents.
//
// Store is the narrow set of collection operations the hook pipeline needs. MongoStore
// implements it on the official driver; MemoryStore keeps documents in process and is
// used by tests and the seed command's dry run.
package document

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"docaudit/internal/audit/domain"
	"docaudit/internal/db"
)

var (
	// ErrDuplicateKey is returned by InsertOne when the _id is already taken.
	ErrDuplicateKey = errors.New("document: duplicate _id")
	// ErrUnsupportedOperator is returned for filter or update operators a store cannot evaluate.
	ErrUnsupportedOperator = errors.New("document: unsupported operator")
)

// Cursor iterates lazily over query results. *mongo.Cursor satisfies it.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// Store performs collection operations. Filters are equality documents keyed by (dotted)
// field name. Updates use the `$`-operator form ($set, $unset, $inc).
type Store interface {
	// FindByID returns the document with the given _id, or nil if none exists.
	FindByID(ctx context.Context, collection string, id any) (domain.Snapshot, error)
	// Find returns a cursor over the documents matching filter in natural order.
	Find(ctx context.Context, collection string, filter domain.Snapshot) (Cursor, error)
	// InsertOne stores doc and returns its _id, generating one when doc has none.
	InsertOne(ctx context.Context, collection string, doc domain.Snapshot) (any, error)
	// ReplaceOne replaces the first match with replacement, keeping the matched _id.
	ReplaceOne(ctx context.Context, collection string, filter, replacement domain.Snapshot) error
	UpdateOne(ctx context.Context, collection string, filter, update domain.Snapshot) error
	// UpdateMany applies update to every match and returns the number of matched documents.
	UpdateMany(ctx context.Context, collection string, filter, update domain.Snapshot) (int64, error)
	DeleteOne(ctx context.Context, collection string, filter domain.Snapshot) error
}

// DecodeSnapshot decodes the cursor's current document into a plain snapshot.
func DecodeSnapshot(c Cursor) (domain.Snapshot, error) {
	var m bson.M
	if err := c.Decode(&m); err != nil {
		return nil, err
	}
	return db.PlainDocument(m), nil
}

// ByID returns the equality filter selecting the document with the given _id.
func ByID(id any) domain.Snapshot {
	return domain.Snapshot{"_id": id}
}

func orEmpty(s domain.Snapshot) domain.Snapshot {
	if s == nil {
		return domain.Snapshot{}
	}
	return s
}

// Normalize returns doc as the store holds it: a copy through BSON, so dates are
// millisecond UTC, Go ints are int32 or int64 and nothing aliases caller memory.
// A nil doc yields an empty document.
func Normalize(doc domain.Snapshot) (domain.Snapshot, error) {
	if doc == nil {
		return domain.Snapshot{}, nil
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("document: encode: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("document: decode: %w", err)
	}
	return db.PlainDocument(m), nil
}
