package db

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Plain converts decoded BSON containers into plain Go values: documents become
// map[string]any and arrays []any, recursively. Other values are returned unchanged.
func Plain(v any) any {
	switch t := v.(type) {
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = Plain(e.Value)
		}
		return out
	case bson.M:
		return plainMap(t)
	case map[string]any:
		return plainMap(t)
	case primitive.A:
		return plainSlice(t)
	case []any:
		return plainSlice(t)
	default:
		return v
	}
}

// PlainDocument is Plain for a top-level document.
func PlainDocument(m bson.M) map[string]any {
	if m == nil {
		return nil
	}
	return plainMap(m)
}

func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, e := range m {
		out[k] = Plain(e)
	}
	return out
}

func plainSlice(s []any) []any {
	out := make([]any, len(s))
	for i, e := range s {
		out[i] = Plain(e)
	}
	return out
}
