package domain

import (
	"time"

	"github.com/goccy/go-json"
)

// Snapshot is a JSON-compatible view of a document: nested maps, slices and scalars.
type Snapshot = map[string]any

// ChangeType labels a single entry of a change map.
type ChangeType string

const (
	ChangeAdd    ChangeType = "Add"
	ChangeEdit   ChangeType = "Edit"
	ChangeDelete ChangeType = "Delete"
)

// ChangeEntry is the recorded change of one logical field.
// HasFrom/HasTo track presence, so a null value is distinguishable from an absent one.
type ChangeEntry struct {
	From    any
	To      any
	HasFrom bool
	HasTo   bool
	Type    ChangeType
}

// Added returns an Add entry carrying only the new value.
func Added(to any) ChangeEntry {
	return ChangeEntry{To: to, HasTo: true, Type: ChangeAdd}
}

// Deleted returns a Delete entry carrying only the old value.
func Deleted(from any) ChangeEntry {
	return ChangeEntry{From: from, HasFrom: true, Type: ChangeDelete}
}

// Edited returns an Edit entry carrying both values.
func Edited(from, to any) ChangeEntry {
	return ChangeEntry{From: from, To: to, HasFrom: true, HasTo: true, Type: ChangeEdit}
}

// Fields returns the persisted layout of the entry: type plus whichever of from/to are present.
func (e ChangeEntry) Fields() map[string]any {
	out := map[string]any{"type": string(e.Type)}
	if e.HasFrom {
		out["from"] = e.From
	}
	if e.HasTo {
		out["to"] = e.To
	}
	return out
}

// EntryFromFields is the inverse of Fields. Unknown types are kept verbatim.
func EntryFromFields(m map[string]any) ChangeEntry {
	e := ChangeEntry{}
	if t, ok := m["type"].(string); ok {
		e.Type = ChangeType(t)
	}
	if v, ok := m["from"]; ok {
		e.From, e.HasFrom = v, true
	}
	if v, ok := m["to"]; ok {
		e.To, e.HasTo = v, true
	}
	return e
}

func (e ChangeEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Fields())
}

func (e *ChangeEntry) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*e = EntryFromFields(m)
	return nil
}

// ChangeMap maps a dotted field path to its change.
type ChangeMap map[string]ChangeEntry

// AuditRecord is one persisted change set of a single document. It is never mutated after Create.
type AuditRecord struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"itemId"`
	ItemName  string    `json:"itemName"`
	Changes   ChangeMap `json:"changes"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
