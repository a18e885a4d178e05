package document

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"docaudit/internal/audit/domain"
	"docaudit/internal/db"
)

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore returns a store over database.
func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{db: database}
}

func (s *MongoStore) FindByID(ctx context.Context, collection string, id any) (domain.Snapshot, error) {
	var m bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return db.PlainDocument(m), nil
}

func (s *MongoStore) Find(ctx context.Context, collection string, filter domain.Snapshot) (Cursor, error) {
	cur, err := s.db.Collection(collection).Find(ctx, orEmpty(filter))
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (s *MongoStore) InsertOne(ctx context.Context, collection string, doc domain.Snapshot) (any, error) {
	res, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errors.Join(ErrDuplicateKey, err)
		}
		return nil, err
	}
	return res.InsertedID, nil
}

func (s *MongoStore) ReplaceOne(ctx context.Context, collection string, filter, replacement domain.Snapshot) error {
	_, err := s.db.Collection(collection).ReplaceOne(ctx, orEmpty(filter), replacement)
	return err
}

func (s *MongoStore) UpdateOne(ctx context.Context, collection string, filter, update domain.Snapshot) error {
	_, err := s.db.Collection(collection).UpdateOne(ctx, orEmpty(filter), update)
	return err
}

func (s *MongoStore) UpdateMany(ctx context.Context, collection string, filter, update domain.Snapshot) (int64, error) {
	res, err := s.db.Collection(collection).UpdateMany(ctx, orEmpty(filter), update)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (s *MongoStore) DeleteOne(ctx context.Context, collection string, filter domain.Snapshot) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, orEmpty(filter))
	return err
}
