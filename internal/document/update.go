package document

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"docaudit/internal/audit/domain"
)

// matches evaluates an equality filter. A field condition may be a plain value or
// {"$eq": v} / {"$in": [...]}; any other operator is rejected.
func matches(doc, filter domain.Snapshot) (bool, error) {
	for _, k := range slices.Sorted(maps.Keys(filter)) {
		if strings.HasPrefix(k, "$") {
			return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, k)
		}
		got, present := lookup(doc, k)
		want := filter[k]
		if cond, ok := want.(map[string]any); ok && hasOperator(cond) {
			ok, err := matchCondition(got, present, cond)
			if err != nil || !ok {
				return false, err
			}
			continue
		}
		if !present || !sameValue(got, want) {
			return false, nil
		}
	}
	return true, nil
}

func matchCondition(got any, present bool, cond map[string]any) (bool, error) {
	for op, arg := range cond {
		switch op {
		case "$eq":
			if !present || !sameValue(got, arg) {
				return false, nil
			}
		case "$in":
			list, ok := arg.([]any)
			if !ok {
				return false, fmt.Errorf("document: $in needs an array")
			}
			if !present || !slices.ContainsFunc(list, func(v any) bool { return sameValue(got, v) }) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
		}
	}
	return true, nil
}

// sameValue compares numbers by value across int32, int64 and float64, like the server does.
func sameValue(a, b any) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func hasOperator(m map[string]any) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// ApplyUpdate returns a copy of doc with an operator update applied. Supported operators
// are $set, $unset, $inc, $push (with $each), $addToSet and $pull (equality only).
// doc is not modified.
func ApplyUpdate(doc, update domain.Snapshot) (domain.Snapshot, error) {
	if len(update) == 0 {
		return nil, fmt.Errorf("document: empty update")
	}
	update, err := Normalize(update)
	if err != nil {
		return nil, err
	}
	out, err := Normalize(doc)
	if err != nil {
		return nil, err
	}
	for _, op := range slices.Sorted(maps.Keys(update)) {
		body, ok := update[op].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("document: update operator %s needs a document, got %T", op, update[op])
		}
		switch op {
		case "$set":
			for k, v := range body {
				if err := SetPath(out, k, v); err != nil {
					return nil, err
				}
			}
		case "$unset":
			for k := range body {
				unsetPath(out, k)
			}
		case "$inc":
			for k, v := range body {
				cur, _ := lookup(out, k)
				sum, err := add(cur, v)
				if err != nil {
					return nil, fmt.Errorf("document: $inc %s: %w", k, err)
				}
				if err := SetPath(out, k, sum); err != nil {
					return nil, err
				}
			}
		case "$push", "$addToSet":
			for k, v := range body {
				cur, present := lookup(out, k)
				list, ok := cur.([]any)
				if present && !ok {
					return nil, fmt.Errorf("document: %s %s: field is not an array", op, k)
				}
				for _, item := range eachOf(v) {
					if op == "$addToSet" && slices.ContainsFunc(list, func(e any) bool { return sameValue(e, item) }) {
						continue
					}
					list = append(list, item)
				}
				if err := SetPath(out, k, list); err != nil {
					return nil, err
				}
			}
		case "$pull":
			for k, v := range body {
				list, ok := lookupSlice(out, k)
				if !ok {
					continue
				}
				if err := SetPath(out, k, slices.DeleteFunc(list, func(e any) bool { return sameValue(e, v) })); err != nil {
					return nil, err
				}
			}
		default:
			if !strings.HasPrefix(op, "$") {
				return nil, fmt.Errorf("document: update field %q is not an operator", op)
			}
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
		}
	}
	return out, nil
}

// eachOf expands {"$each": [...]} into its items.
func eachOf(v any) []any {
	if m, ok := v.(map[string]any); ok {
		if items, ok := m["$each"].([]any); ok {
			return items
		}
	}
	return []any{v}
}

func lookupSlice(doc domain.Snapshot, path string) ([]any, bool) {
	v, ok := lookup(doc, path)
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	return list, ok
}

func add(cur, delta any) (any, error) {
	switch d := delta.(type) {
	case int32:
		return add(cur, int64(d))
	case int64:
		switch c := cur.(type) {
		case nil:
			return d, nil
		case int32:
			return int64(c) + d, nil
		case int64:
			return c + d, nil
		case float64:
			return c + float64(d), nil
		}
	case float64:
		switch c := cur.(type) {
		case nil:
			return d, nil
		case int32:
			return float64(c) + d, nil
		case int64:
			return float64(c) + d, nil
		case float64:
			return c + d, nil
		}
	}
	return nil, fmt.Errorf("cannot add %T to %T", delta, cur)
}

// lookup resolves a dotted path through nested documents. Numeric segments index arrays.
func lookup(doc domain.Snapshot, path string) (any, bool) {
	var cur any = doc
	for _, seg := range strings.Split(path, ".") {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, ok := arrayIndex(seg)
			if !ok || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// SetPath assigns v at a dotted path in doc. Missing or scalar intermediates become
// documents. A numeric segment addresses an array element; writing past the end pads
// the array with nulls. A non-numeric segment under an array is an error.
func SetPath(doc domain.Snapshot, path string, v any) error {
	_, err := setAt(doc, strings.Split(path, "."), path, v)
	return err
}

func setAt(cur any, segs []string, path string, v any) (any, error) {
	if len(segs) == 0 {
		return v, nil
	}
	seg := segs[0]
	switch c := cur.(type) {
	case map[string]any:
		next, err := setAt(c[seg], segs[1:], path, v)
		if err != nil {
			return nil, err
		}
		c[seg] = next
		return c, nil
	case []any:
		i, ok := arrayIndex(seg)
		if !ok {
			return nil, fmt.Errorf("document: %s: cannot address field %q of an array", path, seg)
		}
		for len(c) <= i {
			c = append(c, nil)
		}
		next, err := setAt(c[i], segs[1:], path, v)
		if err != nil {
			return nil, err
		}
		c[i] = next
		return c, nil
	default:
		return setAt(make(map[string]any), segs, path, v)
	}
}

// unsetPath removes the field at path. An array element is set to null instead, keeping
// the positions of the others.
func unsetPath(doc domain.Snapshot, path string) {
	segs := strings.Split(path, ".")
	var parent any = doc
	if len(segs) > 1 {
		var ok bool
		if parent, ok = lookup(doc, strings.Join(segs[:len(segs)-1], ".")); !ok {
			return
		}
	}
	last := segs[len(segs)-1]
	switch p := parent.(type) {
	case map[string]any:
		delete(p, last)
	case []any:
		if i, ok := arrayIndex(last); ok && i < len(p) {
			p[i] = nil
		}
	}
}

func arrayIndex(seg string) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || seg != strconv.Itoa(i) {
		return 0, false
	}
	return i, true
}
