// Package diff computes structural differences between two document snapshots.
//
// Snapshots are plain JSON-shaped values (see Clone). Compute walks both trees and
// emits one Change per differing leaf or sub-structure; differences inside a sequence
// are reported as ArrayChanged against the sequence's own path so callers can
// re-extract the whole sequence from the snapshots.
package diff

import (
	"maps"
	"reflect"
	"slices"
	"strings"

	"docaudit/internal/audit/domain"
)

// Kind classifies a Change.
type Kind string

const (
	Added        Kind = "added"
	Deleted      Kind = "deleted"
	Edited       Kind = "edited"
	ArrayChanged Kind = "array"
)

// Change is a single difference between two snapshots.
// For ArrayChanged, Path is the path of the sequence itself, Index is the element
// position and Item is the element-level kind (Added, Deleted or Edited).
type Change struct {
	Kind  Kind
	Path  []string
	Old   any
	New   any
	Index int
	Item  Kind
}

// Key returns the dotted form of Path.
func (c Change) Key() string {
	return strings.Join(c.Path, ".")
}

// Filter reports whether key under path must be skipped. path is the parent path (empty at root).
type Filter func(path []string, key string) bool

// metadataKeys are document bookkeeping fields never reported as changes.
var metadataKeys = map[string]bool{
	"_id":       true,
	"__v":       true,
	"createdAt": true,
	"updatedAt": true,
}

// MetadataFilter skips identity, version and timestamp fields at the document root only.
// The same names nested deeper are compared normally.
func MetadataFilter(path []string, key string) bool {
	return len(path) == 0 && metadataKeys[key]
}

// Compute returns the changes turning before into after. filter may be nil.
// Neither snapshot is modified.
func Compute(before, after domain.Snapshot, filter Filter) []Change {
	var out []Change
	walkMaps(nil, before, after, filter, &out)
	return out
}

func walkMaps(path []string, lhs, rhs map[string]any, filter Filter, out *[]Change) {
	for _, k := range slices.Sorted(maps.Keys(lhs)) {
		if filter != nil && filter(path, k) {
			continue
		}
		p := child(path, k)
		r, ok := rhs[k]
		if !ok {
			*out = append(*out, Change{Kind: Deleted, Path: p, Old: lhs[k]})
			continue
		}
		walk(p, lhs[k], r, filter, out)
	}
	for _, k := range slices.Sorted(maps.Keys(rhs)) {
		if _, ok := lhs[k]; ok {
			continue
		}
		if filter != nil && filter(path, k) {
			continue
		}
		*out = append(*out, Change{Kind: Added, Path: child(path, k), New: rhs[k]})
	}
}

func walk(path []string, lhs, rhs any, filter Filter, out *[]Change) {
	switch l := lhs.(type) {
	case map[string]any:
		if r, ok := rhs.(map[string]any); ok {
			walkMaps(path, l, r, filter, out)
			return
		}
	case []any:
		if r, ok := rhs.([]any); ok {
			walkSlices(path, l, r, out)
			return
		}
	}
	if !Equal(lhs, rhs) {
		*out = append(*out, Change{Kind: Edited, Path: path, Old: lhs, New: rhs})
	}
}

func walkSlices(path []string, lhs, rhs []any, out *[]Change) {
	for i := 0; i < max(len(lhs), len(rhs)); i++ {
		switch {
		case i >= len(lhs):
			*out = append(*out, Change{Kind: ArrayChanged, Path: path, Index: i, Item: Added, New: rhs[i]})
		case i >= len(rhs):
			*out = append(*out, Change{Kind: ArrayChanged, Path: path, Index: i, Item: Deleted, Old: lhs[i]})
		case !Equal(lhs[i], rhs[i]):
			*out = append(*out, Change{Kind: ArrayChanged, Path: path, Index: i, Item: Edited, Old: lhs[i], New: rhs[i]})
		}
	}
}

// Equal reports deep equality of two cloned snapshot values.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func child(path []string, key string) []string {
	p := make([]string, len(path)+1)
	copy(p, path)
	p[len(path)] = key
	return p
}
