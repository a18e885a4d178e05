// Package hooks runs interceptors around document mutations.
//
// A Collection wraps one collection of a document.Store. Before each audited mutation it
// loads the stored state of every affected document, computes the state about to be
// written and hands both to its interceptors. Any interceptor error aborts the mutation
// before the store is touched.
package hooks

import (
	"context"

	"docaudit/internal/audit"
	"docaudit/internal/audit/domain"
)

// Operation names the mutation an interceptor is called for.
type Operation string

const (
	// OpInsert is a save of a document that does not exist yet. It is not audited,
	// but interceptors still run so they can reject it.
	OpInsert           Operation = "insert"
	OpSave             Operation = "save"
	OpUpdate           Operation = "update"
	OpUpdateOne        Operation = "updateOne"
	OpUpdateMany       Operation = "updateMany"
	OpFindOneAndUpdate Operation = "findOneAndUpdate"
	OpReplaceOne       Operation = "replaceOne"
	OpRemove           Operation = "remove"
	OpFindOneAndDelete Operation = "findOneAndDelete"
	OpFindOneAndRemove Operation = "findOneAndRemove"
)

// Options are the per-call settings of a mutation.
type Options struct {
	// User is the acting user for this call.
	User string
	// Multi applies Update to every match instead of the first one.
	Multi bool
}

// Call is what an interceptor sees for one document.
type Call struct {
	Operation  Operation
	Collection string
	ItemName   string
	// Prior is the stored document (nil for OpInsert). Pending is the document about to
	// be written, empty for deletions. Pending may carry audit.UserMarker.
	Prior   domain.Snapshot
	Pending domain.Snapshot
	Options Options
}

// Interceptor inspects a mutation before it is committed. Returning an error aborts it.
type Interceptor func(ctx context.Context, call Call) error

// Audit returns an interceptor recording every call with r. Inserts are only checked
// for a resolvable user.
func Audit(r *audit.Recorder) Interceptor {
	return func(ctx context.Context, call Call) error {
		if call.Operation == OpInsert {
			_, err := r.ResolveUser(ctx, call.Options.User, call.Pending)
			return err
		}
		_, err := r.Record(ctx, audit.Event{
			ItemName: call.ItemName,
			Prior:    call.Prior,
			Pending:  call.Pending,
			User:     call.Options.User,
		})
		return err
	}
}
