package diff

import (
	"bytes"
	"fmt"
	"math"

	"github.com/goccy/go-json"

	"docaudit/internal/audit/domain"
)

// Clone returns a deep, JSON-shaped copy of v: nested objects become map[string]any,
// sequences []any, integral numbers int64 and other numbers float64. Values with a
// JSON encoding of their own (ObjectIDs, dates) are replaced by that encoding.
// A nil v yields an empty snapshot. v must encode to a JSON object.
func Clone(v any) (domain.Snapshot, error) {
	if v == nil {
		return domain.Snapshot{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("diff: encode snapshot: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("diff: decode snapshot: %w", err)
	}
	if out == nil {
		return domain.Snapshot{}, nil
	}
	return normalize(out).(map[string]any), nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil && !math.IsInf(f, 0) {
			return f
		}
		return t.String()
	default:
		return v
	}
}
