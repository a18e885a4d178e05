package hooks

import (
	"context"
	"fmt"

	"docaudit/internal/audit"
	"docaudit/internal/audit/domain"
	"docaudit/internal/document"
)

// Collection is an audited view of one store collection.
//
// Single-document updates (Update without Multi, UpdateOne, FindOneAndUpdate, ReplaceOne)
// affect and audit the first match in the store's natural order only, and are written
// by that document's _id. Bulk updates audit every match, then apply the update with the
// caller's filter; a failing interceptor aborts the rest, leaving earlier audits in place.
type Collection struct {
	store        document.Store
	name         string
	itemName     string
	flattener    UpdateFlattener
	interceptors []Interceptor
}

// Option configures a Collection.
type Option func(*Collection)

// WithItemName overrides the item name recorded for this collection (default ItemNameFor(name)).
func WithItemName(itemName string) Option {
	return func(c *Collection) { c.itemName = itemName }
}

// WithFlattener replaces the default OperatorFlattener.
func WithFlattener(f UpdateFlattener) Option {
	return func(c *Collection) { c.flattener = f }
}

// WithInterceptors registers interceptors, run in order.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(c *Collection) { c.interceptors = append(c.interceptors, interceptors...) }
}

// NewCollection returns an audited view of the named collection of store.
func NewCollection(store document.Store, name string, opts ...Option) *Collection {
	c := &Collection{store: store, name: name, itemName: ItemNameFor(name), flattener: OperatorFlattener{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Use appends interceptors. Not safe for use concurrently with mutations.
func (c *Collection) Use(interceptors ...Interceptor) {
	c.interceptors = append(c.interceptors, interceptors...)
}

func (c *Collection) Name() string     { return c.name }
func (c *Collection) ItemName() string { return c.itemName }

// FindByID reads a document without auditing.
func (c *Collection) FindByID(ctx context.Context, id any) (domain.Snapshot, error) {
	return c.store.FindByID(ctx, c.name, id)
}

// Save writes doc. A doc whose _id is not stored yet is inserted without an audit; an
// existing one is audited against its stored state and replaced. The audit compares doc
// in the form the store keeps it (e.g. dates at millisecond UTC). It returns the _id.
func (c *Collection) Save(ctx context.Context, doc domain.Snapshot, opts Options) (any, error) {
	id, hasID := doc["_id"]
	var prior domain.Snapshot
	if hasID && id != nil {
		var err error
		if prior, err = c.store.FindByID(ctx, c.name, id); err != nil {
			return nil, fmt.Errorf("hooks: load %s %v: %w", c.name, id, err)
		}
	}

	if prior == nil {
		if err := c.intercept(ctx, OpInsert, nil, doc, opts); err != nil {
			return nil, err
		}
		newID, err := c.store.InsertOne(ctx, c.name, audit.StripMarker(doc))
		if err != nil {
			return nil, fmt.Errorf("hooks: insert into %s: %w", c.name, err)
		}
		return newID, nil
	}

	pending, err := document.Normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("hooks: save %s %v: %w", c.name, id, err)
	}
	if err := c.intercept(ctx, OpSave, prior, pending, opts); err != nil {
		return nil, err
	}
	if err := c.store.ReplaceOne(ctx, c.name, document.ByID(id), audit.StripMarker(doc)); err != nil {
		return nil, fmt.Errorf("hooks: replace %s %v: %w", c.name, id, err)
	}
	return id, nil
}

// Update applies update to the first match, or to every match when opts.Multi is set.
func (c *Collection) Update(ctx context.Context, filter, update domain.Snapshot, opts Options) error {
	_, err := c.update(ctx, OpUpdate, filter, update, opts, opts.Multi)
	return err
}

// UpdateOne applies update to the first match.
func (c *Collection) UpdateOne(ctx context.Context, filter, update domain.Snapshot, opts Options) error {
	_, err := c.update(ctx, OpUpdateOne, filter, update, opts, false)
	return err
}

// UpdateMany applies update to every match and returns how many documents were audited.
func (c *Collection) UpdateMany(ctx context.Context, filter, update domain.Snapshot, opts Options) (int, error) {
	ids, err := c.update(ctx, OpUpdateMany, filter, update, opts, true)
	return len(ids), err
}

// FindOneAndUpdate applies update to the first match and returns the updated document,
// or nil when nothing matched.
func (c *Collection) FindOneAndUpdate(ctx context.Context, filter, update domain.Snapshot, opts Options) (domain.Snapshot, error) {
	ids, err := c.update(ctx, OpFindOneAndUpdate, filter, update, opts, false)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return c.store.FindByID(ctx, c.name, ids[0])
}

// ReplaceOne replaces the first match with replacement, keeping its _id.
func (c *Collection) ReplaceOne(ctx context.Context, filter, replacement domain.Snapshot, opts Options) error {
	prior, err := c.first(ctx, filter)
	if err != nil || prior == nil {
		return err
	}
	id := prior["_id"]
	pending, err := document.Normalize(replacement)
	if err != nil {
		return fmt.Errorf("hooks: replace %s %v: %w", c.name, id, err)
	}
	pending["_id"] = id

	if err := c.intercept(ctx, OpReplaceOne, prior, pending, opts); err != nil {
		return err
	}
	if err := c.store.ReplaceOne(ctx, c.name, document.ByID(id), audit.StripMarker(pending)); err != nil {
		return fmt.Errorf("hooks: replace %s %v: %w", c.name, id, err)
	}
	return nil
}

// Remove deletes the stored document with doc's _id. Every stored field is audited as
// deleted. A marker on doc names the acting user. Removing a missing document is a no-op.
func (c *Collection) Remove(ctx context.Context, doc domain.Snapshot, opts Options) error {
	id, ok := doc["_id"]
	if !ok || id == nil {
		return fmt.Errorf("hooks: remove from %s: document has no _id", c.name)
	}
	prior, err := c.store.FindByID(ctx, c.name, id)
	if err != nil {
		return fmt.Errorf("hooks: load %s %v: %w", c.name, id, err)
	}
	if prior == nil {
		return nil
	}
	return c.remove(ctx, OpRemove, prior, markerOf(doc), opts)
}

// FindOneAndDelete deletes the first match and returns it, or nil when nothing matched.
func (c *Collection) FindOneAndDelete(ctx context.Context, filter domain.Snapshot, opts Options) (domain.Snapshot, error) {
	return c.findAndRemove(ctx, OpFindOneAndDelete, filter, opts)
}

// FindOneAndRemove is FindOneAndDelete under its legacy name.
func (c *Collection) FindOneAndRemove(ctx context.Context, filter domain.Snapshot, opts Options) (domain.Snapshot, error) {
	return c.findAndRemove(ctx, OpFindOneAndRemove, filter, opts)
}

func (c *Collection) findAndRemove(ctx context.Context, op Operation, filter domain.Snapshot, opts Options) (domain.Snapshot, error) {
	prior, err := c.first(ctx, filter)
	if err != nil || prior == nil {
		return nil, err
	}
	if err := c.remove(ctx, op, prior, domain.Snapshot{}, opts); err != nil {
		return nil, err
	}
	return prior, nil
}

func (c *Collection) remove(ctx context.Context, op Operation, prior, pending domain.Snapshot, opts Options) error {
	if err := c.intercept(ctx, op, prior, pending, opts); err != nil {
		return err
	}
	id := prior["_id"]
	if err := c.store.DeleteOne(ctx, c.name, document.ByID(id)); err != nil {
		return fmt.Errorf("hooks: delete %s %v: %w", c.name, id, err)
	}
	return nil
}

// update audits the matches of filter and then writes update. It returns the _id of
// every audited document.
func (c *Collection) update(ctx context.Context, op Operation, filter, update domain.Snapshot, opts Options, multi bool) ([]any, error) {
	user, update := takeMarker(update)
	if opts.User == "" {
		opts.User = user
	}

	cur, err := c.store.Find(ctx, c.name, filter)
	if err != nil {
		return nil, fmt.Errorf("hooks: find in %s: %w", c.name, err)
	}
	defer cur.Close(ctx)

	var ids []any
	for cur.Next(ctx) {
		prior, err := document.DecodeSnapshot(cur)
		if err != nil {
			return ids, fmt.Errorf("hooks: decode %s: %w", c.name, err)
		}
		pending, err := c.flattener.Pending(prior, update)
		if err != nil {
			return ids, fmt.Errorf("hooks: apply update to %s %v: %w", c.name, prior["_id"], err)
		}
		if err := c.intercept(ctx, op, prior, pending, opts); err != nil {
			return ids, err
		}
		ids = append(ids, prior["_id"])
		if !multi {
			break
		}
	}
	if err := cur.Err(); err != nil {
		return ids, fmt.Errorf("hooks: iterate %s: %w", c.name, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	storeUpdate, err := c.flattener.StoreUpdate(update)
	if err != nil {
		return ids, fmt.Errorf("hooks: update %s: %w", c.name, err)
	}
	if multi {
		if _, err := c.store.UpdateMany(ctx, c.name, filter, storeUpdate); err != nil {
			return ids, fmt.Errorf("hooks: update %s: %w", c.name, err)
		}
		return ids, nil
	}
	if err := c.store.UpdateOne(ctx, c.name, document.ByID(ids[0]), storeUpdate); err != nil {
		return ids, fmt.Errorf("hooks: update %s %v: %w", c.name, ids[0], err)
	}
	return ids, nil
}

// first returns the first match of filter, or nil.
func (c *Collection) first(ctx context.Context, filter domain.Snapshot) (domain.Snapshot, error) {
	cur, err := c.store.Find(ctx, c.name, filter)
	if err != nil {
		return nil, fmt.Errorf("hooks: find in %s: %w", c.name, err)
	}
	defer cur.Close(ctx)
	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, fmt.Errorf("hooks: iterate %s: %w", c.name, err)
		}
		return nil, nil
	}
	doc, err := document.DecodeSnapshot(cur)
	if err != nil {
		return nil, fmt.Errorf("hooks: decode %s: %w", c.name, err)
	}
	return doc, nil
}

func (c *Collection) intercept(ctx context.Context, op Operation, prior, pending domain.Snapshot, opts Options) error {
	call := Call{
		Operation:  op,
		Collection: c.name,
		ItemName:   c.itemName,
		Prior:      prior,
		Pending:    pending,
		Options:    opts,
	}
	for _, ic := range c.interceptors {
		if err := ic(ctx, call); err != nil {
			return fmt.Errorf("hooks: %s on %s: %w", op, c.name, err)
		}
	}
	return nil
}

// markerOf keeps only the user marker of doc, so a deletion diffs against an empty document.
func markerOf(doc domain.Snapshot) domain.Snapshot {
	if v, ok := doc[audit.UserMarker]; ok {
		return domain.Snapshot{audit.UserMarker: v}
	}
	return domain.Snapshot{}
}
