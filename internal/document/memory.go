package document

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docaudit/internal/audit/domain"
)

// MemoryStore is an in-process Store. Documents are kept in insertion order and copied
// through a BSON round-trip on every read and write, so values have the same Go types
// a MongoStore would return (int64, primitive.DateTime, ObjectID).
type MemoryStore struct {
	mu    sync.RWMutex
	colls map[string][]domain.Snapshot
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{colls: make(map[string][]domain.Snapshot)}
}

func (s *MemoryStore) FindByID(ctx context.Context, collection string, id any) (domain.Snapshot, error) {
	cur, err := s.Find(ctx, collection, ByID(id))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if !cur.Next(ctx) {
		return nil, cur.Err()
	}
	return DecodeSnapshot(cur)
}

func (s *MemoryStore) Find(ctx context.Context, collection string, filter domain.Snapshot) (Cursor, error) {
	f, err := Normalize(orEmpty(filter))
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []domain.Snapshot
	for _, d := range s.colls[collection] {
		ok, err := matches(d, f)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, d)
		}
	}
	return &memoryCursor{docs: docs, pos: -1}, nil
}

func (s *MemoryStore) InsertOne(ctx context.Context, collection string, doc domain.Snapshot) (any, error) {
	d, err := Normalize(doc)
	if err != nil {
		return nil, err
	}
	id, ok := d["_id"]
	if !ok || id == nil {
		id = primitive.NewObjectID()
		d["_id"] = id
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(collection, domain.Snapshot{"_id": id}) >= 0 {
		return nil, fmt.Errorf("%w: %v", ErrDuplicateKey, id)
	}
	s.colls[collection] = append(s.colls[collection], d)
	return id, nil
}

func (s *MemoryStore) ReplaceOne(ctx context.Context, collection string, filter, replacement domain.Snapshot) error {
	f, err := Normalize(orEmpty(filter))
	if err != nil {
		return err
	}
	r, err := Normalize(replacement)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(collection, f)
	if i < 0 {
		return nil
	}
	r["_id"] = s.colls[collection][i]["_id"]
	s.colls[collection][i] = r
	return nil
}

func (s *MemoryStore) UpdateOne(ctx context.Context, collection string, filter, update domain.Snapshot) error {
	_, err := s.update(collection, filter, update, false)
	return err
}

func (s *MemoryStore) UpdateMany(ctx context.Context, collection string, filter, update domain.Snapshot) (int64, error) {
	return s.update(collection, filter, update, true)
}

func (s *MemoryStore) DeleteOne(ctx context.Context, collection string, filter domain.Snapshot) error {
	f, err := Normalize(orEmpty(filter))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(collection, f); i >= 0 {
		s.colls[collection] = slices.Delete(s.colls[collection], i, i+1)
	}
	return nil
}

func (s *MemoryStore) update(collection string, filter, update domain.Snapshot, multi bool) (int64, error) {
	f, err := Normalize(orEmpty(filter))
	if err != nil {
		return 0, err
	}
	u, err := Normalize(update)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.colls[collection]
	var matched int64
	for i, d := range docs {
		ok, err := matches(d, f)
		if err != nil {
			return matched, err
		}
		if !ok {
			continue
		}
		next, err := ApplyUpdate(d, u)
		if err != nil {
			return matched, err
		}
		docs[i] = next
		matched++
		if !multi {
			break
		}
	}
	return matched, nil
}

// indexOf returns the position of the first match, or -1. Callers hold s.mu.
func (s *MemoryStore) indexOf(collection string, filter domain.Snapshot) int {
	for i, d := range s.colls[collection] {
		if ok, _ := matches(d, filter); ok {
			return i
		}
	}
	return -1
}

type memoryCursor struct {
	docs []domain.Snapshot
	pos  int
}

func (c *memoryCursor) Next(context.Context) bool {
	if c.pos+1 >= len(c.docs) {
		c.pos = len(c.docs)
		return false
	}
	c.pos++
	return true
}

func (c *memoryCursor) Decode(v any) error {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return fmt.Errorf("document: cursor is not positioned on a document")
	}
	raw, err := bson.Marshal(c.docs[c.pos])
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, v)
}

func (c *memoryCursor) Err() error                  { return nil }
func (c *memoryCursor) Close(context.Context) error { return nil }
