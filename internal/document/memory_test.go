package document

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docaudit/internal/audit/domain"
)

func collect(t *testing.T, s Store, coll string, filter domain.Snapshot) []domain.Snapshot {
	t.Helper()
	ctx := context.Background()
	cur, err := s.Find(ctx, coll, filter)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	defer cur.Close(ctx)
	var out []domain.Snapshot
	for cur.Next(ctx) {
		d, err := DecodeSnapshot(cur)
		if err != nil {
			t.Fatalf("DecodeSnapshot: %v", err)
		}
		out = append(out, d)
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("cursor: %v", err)
	}
	return out
}

func TestMemoryStore_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.InsertOne(ctx, "things", domain.Snapshot{"name": "a", "n": 1})
	if err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if _, ok := id.(primitive.ObjectID); !ok {
		t.Errorf("generated id = %T, want ObjectID", id)
	}
	if _, err := s.InsertOne(ctx, "things", domain.Snapshot{"_id": "b", "name": "b"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	got, err := s.FindByID(ctx, "things", id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got["name"] != "a" {
		t.Errorf("name = %v, want a", got["name"])
	}
	if n, ok := number(got["n"]); !ok || n != 1 {
		t.Errorf("n = %#v, want 1", got["n"])
	}

	missing, err := s.FindByID(ctx, "things", "nope")
	if err != nil || missing != nil {
		t.Errorf("FindByID(missing) = %v, %v; want nil, nil", missing, err)
	}

	all := collect(t, s, "things", nil)
	if len(all) != 2 || all[0]["name"] != "a" || all[1]["name"] != "b" {
		t.Errorf("Find(all) = %v, want insertion order", all)
	}
}

func TestMemoryStore_InsertDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.InsertOne(ctx, "things", domain.Snapshot{"_id": "x"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if _, err := s.InsertOne(ctx, "things", domain.Snapshot{"_id": "x"}); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestMemoryStore_CopiesOnWriteAndRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc := domain.Snapshot{"_id": "x", "child": map[string]any{"name": "a"}}
	if _, err := s.InsertOne(ctx, "things", doc); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	doc["child"].(map[string]any)["name"] = "mutated"

	got, _ := s.FindByID(ctx, "things", "x")
	if got["child"].(map[string]any)["name"] != "a" {
		t.Error("store aliases the inserted document")
	}
	got["child"].(map[string]any)["name"] = "mutated"
	again, _ := s.FindByID(ctx, "things", "x")
	if again["child"].(map[string]any)["name"] != "a" {
		t.Error("store aliases returned documents")
	}
}

func TestMemoryStore_Filters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, d := range []domain.Snapshot{
		{"_id": "1", "kind": "a", "n": int64(1), "meta": map[string]any{"tag": "x"}},
		{"_id": "2", "kind": "b", "n": 2.0, "meta": map[string]any{"tag": "y"}},
		{"_id": "3", "kind": "a", "n": 3},
	} {
		if _, err := s.InsertOne(ctx, "things", d); err != nil {
			t.Fatalf("InsertOne: %v", err)
		}
	}

	testCases := []struct {
		name   string
		filter domain.Snapshot
		want   []string
	}{
		{"equality", domain.Snapshot{"kind": "a"}, []string{"1", "3"}},
		{"dotted path", domain.Snapshot{"meta.tag": "y"}, []string{"2"}},
		{"numbers compare by value", domain.Snapshot{"n": 2}, []string{"2"}},
		{"int64 matches int32", domain.Snapshot{"n": int64(3)}, []string{"3"}},
		{"$in", domain.Snapshot{"_id": map[string]any{"$in": []any{"1", "2"}}}, []string{"1", "2"}},
		{"$eq", domain.Snapshot{"kind": map[string]any{"$eq": "b"}}, []string{"2"}},
		{"missing field", domain.Snapshot{"meta.tag": "x", "kind": "b"}, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := collect(t, s, "things", tc.filter)
			if len(got) != len(tc.want) {
				t.Fatalf("matched %d, want %d", len(got), len(tc.want))
			}
			for i, d := range got {
				if d["_id"] != tc.want[i] {
					t.Errorf("match %d = %v, want %s", i, d["_id"], tc.want[i])
				}
			}
		})
	}
}

func TestMemoryStore_UnsupportedFilterOperator(t *testing.T) {
	s := NewMemoryStore()
	_, _ = s.InsertOne(context.Background(), "things", domain.Snapshot{"n": 1})
	_, err := s.Find(context.Background(), "things", domain.Snapshot{"n": map[string]any{"$gt": 0}})
	if !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("err = %v, want ErrUnsupportedOperator", err)
	}
}

func TestMemoryStore_Updates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, id := range []string{"1", "2"} {
		_, _ = s.InsertOne(ctx, "things", domain.Snapshot{"_id": id, "kind": "a", "n": int64(1), "gone": true})
	}

	if err := s.UpdateOne(ctx, "things", domain.Snapshot{"kind": "a"}, domain.Snapshot{
		"$set":   map[string]any{"name": "first", "child.deep": "x"},
		"$unset": map[string]any{"gone": ""},
		"$inc":   map[string]any{"n": 2},
	}); err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}
	first, _ := s.FindByID(ctx, "things", "1")
	if first["name"] != "first" || first["n"] != int64(3) {
		t.Errorf("first = %v", first)
	}
	if _, ok := first["gone"]; ok {
		t.Error("$unset did not remove gone")
	}
	if first["child"].(map[string]any)["deep"] != "x" {
		t.Errorf("child = %v", first["child"])
	}
	second, _ := s.FindByID(ctx, "things", "2")
	if _, ok := second["name"]; ok {
		t.Error("UpdateOne touched the second match")
	}

	n, err := s.UpdateMany(ctx, "things", domain.Snapshot{"kind": "a"}, domain.Snapshot{"$set": map[string]any{"kind": "b"}})
	if err != nil {
		t.Fatalf("UpdateMany: %v", err)
	}
	if n != 2 {
		t.Errorf("matched = %d, want 2", n)
	}
	if got := collect(t, s, "things", domain.Snapshot{"kind": "b"}); len(got) != 2 {
		t.Errorf("updated = %d, want 2", len(got))
	}
}

func TestMemoryStore_UpdateRejectsPlainFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, _ = s.InsertOne(ctx, "things", domain.Snapshot{"_id": "1"})
	if err := s.UpdateOne(ctx, "things", ByID("1"), domain.Snapshot{"name": "x"}); err == nil {
		t.Error("plain update should be rejected")
	}
	if err := s.UpdateOne(ctx, "things", ByID("1"), domain.Snapshot{"$push": map[string]any{"tags": "x"}}); !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("err = %v, want ErrUnsupportedOperator", err)
	}
}

func TestMemoryStore_ReplaceKeepsID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, _ = s.InsertOne(ctx, "things", domain.Snapshot{"_id": "1", "name": "a", "extra": true})

	if err := s.ReplaceOne(ctx, "things", ByID("1"), domain.Snapshot{"name": "b"}); err != nil {
		t.Fatalf("ReplaceOne: %v", err)
	}
	got, _ := s.FindByID(ctx, "things", "1")
	if got == nil || got["name"] != "b" {
		t.Fatalf("replaced = %v", got)
	}
	if _, ok := got["extra"]; ok {
		t.Error("replace should drop fields missing from the replacement")
	}
}

func TestMemoryStore_DeleteOne(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, _ = s.InsertOne(ctx, "things", domain.Snapshot{"_id": "1", "kind": "a"})
	_, _ = s.InsertOne(ctx, "things", domain.Snapshot{"_id": "2", "kind": "a"})

	if err := s.DeleteOne(ctx, "things", domain.Snapshot{"kind": "a"}); err != nil {
		t.Fatalf("DeleteOne: %v", err)
	}
	left := collect(t, s, "things", nil)
	if len(left) != 1 || left[0]["_id"] != "2" {
		t.Errorf("left = %v, want only 2", left)
	}
}

func TestSetPath(t *testing.T) {
	doc := domain.Snapshot{"a": "scalar"}
	if err := SetPath(doc, "a.b.c", int64(1)); err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	if err := SetPath(doc, "top", "x"); err != nil {
		t.Fatalf("SetPath: %v", err)
	}

	inner := doc["a"].(map[string]any)["b"].(map[string]any)
	if inner["c"] != int64(1) || doc["top"] != "x" {
		t.Errorf("doc = %v", doc)
	}
}
