package document

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"docaudit/internal/audit/domain"
)

func TestMongoStore_FindByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, mt.DB.Name()+".things", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "name", Value: "Lucky"},
			{Key: "child", Value: bson.D{{Key: "tags", Value: bson.A{"a", "b"}}}},
		}))

		got, err := s.FindByID(context.Background(), "things", oid)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if got["_id"] != oid || got["name"] != "Lucky" {
			t.Errorf("doc = %v", got)
		}
		child, ok := got["child"].(map[string]any)
		if !ok {
			t.Fatalf("child = %T, want map[string]any", got["child"])
		}
		if tags, ok := child["tags"].([]any); !ok || len(tags) != 2 {
			t.Errorf("tags = %#v, want []any of 2", child["tags"])
		}
	})

	mt.Run("not found", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".things", mtest.FirstBatch))

		got, err := s.FindByID(context.Background(), "things", "missing")
		if err != nil || got != nil {
			t.Errorf("FindByID = %v, %v; want nil, nil", got, err)
		}
	})
}

func TestMongoStore_Find(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("iterates matches", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		ns := mt.DB.Name() + ".things"
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "1"}, {Key: "kind", Value: "a"}},
				bson.D{{Key: "_id", Value: "2"}, {Key: "kind", Value: "a"}},
			),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch),
		)

		got := collect(t, s, "things", domain.Snapshot{"kind": "a"})
		if len(got) != 2 || got[1]["_id"] != "2" {
			t.Errorf("docs = %v", got)
		}
	})
}

func TestMongoStore_Writes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert returns id", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		id, err := s.InsertOne(context.Background(), "things", domain.Snapshot{"_id": "x", "name": "a"})
		if err != nil {
			t.Fatalf("InsertOne: %v", err)
		}
		if id != "x" {
			t.Errorf("id = %v, want x", id)
		}
	})

	mt.Run("duplicate key", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}))

		_, err := s.InsertOne(context.Background(), "things", domain.Snapshot{"_id": "x"})
		if !errors.Is(err, ErrDuplicateKey) {
			t.Errorf("err = %v, want ErrDuplicateKey", err)
		}
	})

	mt.Run("update many reports matches", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 3}, {Key: "nModified", Value: 3}})

		n, err := s.UpdateMany(context.Background(), "things", domain.Snapshot{"kind": "a"},
			domain.Snapshot{"$set": map[string]any{"kind": "b"}})
		if err != nil {
			t.Fatalf("UpdateMany: %v", err)
		}
		if n != 3 {
			t.Errorf("matched = %d, want 3", n)
		}
		started := mt.GetStartedEvent()
		if started == nil || started.CommandName != "update" {
			t.Fatalf("started = %v, want update", started)
		}
	})

	mt.Run("replace, update one and delete", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}},
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}},
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}},
		)
		ctx := context.Background()
		if err := s.ReplaceOne(ctx, "things", ByID("x"), domain.Snapshot{"_id": "x", "name": "b"}); err != nil {
			t.Errorf("ReplaceOne: %v", err)
		}
		if err := s.UpdateOne(ctx, "things", ByID("x"), domain.Snapshot{"$set": map[string]any{"name": "c"}}); err != nil {
			t.Errorf("UpdateOne: %v", err)
		}
		if err := s.DeleteOne(ctx, "things", ByID("x")); err != nil {
			t.Errorf("DeleteOne: %v", err)
		}
	})
}
