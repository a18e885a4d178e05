package audit

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"docaudit/internal/audit/domain"
	"docaudit/internal/diff"
)

// Classify reduces raw changes into a change map keyed by dotted path.
// before and after are the snapshots the changes were computed from; sequences are
// re-read from them so each array field is summarised by one entry holding the full
// old and new sequence.
func Classify(changes []diff.Change, before, after domain.Snapshot) domain.ChangeMap {
	out := make(domain.ChangeMap)
	arrays := make(map[string]bool)
	for _, c := range changes {
		key := c.Key()
		switch c.Kind {
		case diff.Edited:
			out[key] = domain.Edited(c.Old, c.New)
		case diff.Added:
			classifyMember(out, key, c.New, domain.Added)
		case diff.Deleted:
			classifyMember(out, key, c.Old, domain.Deleted)
		case diff.ArrayChanged:
			if arrays[key] {
				continue
			}
			arrays[key] = true
			if e, ok := summarizeArray(sequenceAt(before, c.Path), sequenceAt(after, c.Path)); ok {
				out[key] = e
			}
		}
	}
	return out
}

// IsEntity reports whether m looks like an identified sub-document (has "_id" or "id").
// It is a one-level heuristic: nested values are not inspected.
func IsEntity(m map[string]any) bool {
	if _, ok := m["_id"]; ok {
		return true
	}
	_, ok := m["id"]
	return ok
}

// classifyMember records an added or deleted value. Entities and non-mapping values are
// kept whole; plain sub-objects are expanded one level into their non-empty members.
func classifyMember(out domain.ChangeMap, key string, v any, entry func(any) domain.ChangeEntry) {
	m, ok := v.(map[string]any)
	if !ok || IsEntity(m) {
		out[key] = entry(v)
		return
	}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if isEmpty(m[k]) {
			continue
		}
		out[key+"."+k] = entry(m[k])
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}

func summarizeArray(from, to []any) (domain.ChangeEntry, bool) {
	var t domain.ChangeType
	switch {
	case len(from) > 0 && len(to) > 0:
		t = domain.ChangeEdit
	case len(from) > 0:
		t = domain.ChangeDelete
	case len(to) > 0:
		t = domain.ChangeAdd
	default:
		return domain.ChangeEntry{}, false
	}
	if from == nil {
		from = []any{}
	}
	if to == nil {
		to = []any{}
	}
	return domain.ChangeEntry{From: from, To: to, HasFrom: true, HasTo: true, Type: t}, true
}

// sequenceAt returns the sequence stored at path, or nil when the path is missing or not a sequence.
func sequenceAt(s domain.Snapshot, path []string) []any {
	var cur any = s
	for _, seg := range path {
		switch t := cur.(type) {
		case map[string]any:
			cur = t[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(t) {
				return nil
			}
			cur = t[i]
		default:
			return nil
		}
	}
	seq, _ := cur.([]any)
	return seq
}
