package hooks

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"docaudit/internal/audit"
	"docaudit/internal/audit/domain"
	"docaudit/internal/document"
)

// UpdateFlattener adapts one partial-update dialect to the pipeline.
type UpdateFlattener interface {
	// Pending returns prior with update applied. prior is not modified.
	Pending(prior, update domain.Snapshot) (domain.Snapshot, error)
	// StoreUpdate rewrites update into the operator form the store accepts.
	StoreUpdate(update domain.Snapshot) (domain.Snapshot, error)
}

// OperatorFlattener handles MongoDB-style updates. Plain top-level fields are treated as
// $set; `$`-operator bodies are merged in key order. Dotted keys address nested fields.
type OperatorFlattener struct{}

func (f OperatorFlattener) Pending(prior, update domain.Snapshot) (domain.Snapshot, error) {
	storeUpdate, err := f.StoreUpdate(update)
	if err != nil {
		return nil, err
	}
	return document.ApplyUpdate(orEmpty(prior), storeUpdate)
}

// StoreUpdate moves plain fields into $set, next to any $set already present.
// A $set whose body is not a document is rejected.
func (OperatorFlattener) StoreUpdate(update domain.Snapshot) (domain.Snapshot, error) {
	out := make(domain.Snapshot, len(update))
	var set map[string]any
	for _, k := range slices.Sorted(maps.Keys(update)) {
		if k == "$set" {
			body, ok := update[k].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("hooks: $set needs a document, got %T", update[k])
			}
			if set == nil {
				set = make(map[string]any)
			}
			maps.Copy(set, body)
			continue
		}
		if strings.HasPrefix(k, "$") {
			out[k] = update[k]
			continue
		}
		if set == nil {
			set = make(map[string]any)
		}
		set[k] = update[k]
	}
	if set != nil {
		out["$set"] = set
	}
	return out, nil
}

// takeMarker removes audit.UserMarker from a plain update and returns its string value.
func takeMarker(update domain.Snapshot) (string, domain.Snapshot) {
	v, ok := update[audit.UserMarker]
	if !ok {
		return "", update
	}
	user, _ := v.(string)
	return user, audit.StripMarker(update)
}

func orEmpty(s domain.Snapshot) domain.Snapshot {
	if s == nil {
		return domain.Snapshot{}
	}
	return s
}
