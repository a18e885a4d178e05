// Package audit turns document mutations into persisted change records.
//
// A Recorder compares the stored state of a document with the state about to be
// written, classifies the differences into a flat change map and stores one
// AuditRecord per mutated document, attributed to the acting user.
package audit

import (
	"context"
	"fmt"
	"log"
	"maps"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"docaudit/internal/audit/domain"
	"docaudit/internal/audit/repository"
	"docaudit/internal/diff"
	"docaudit/internal/telemetry"
)

const instrumentationName = "docaudit/audit"

// Event describes one document mutation to audit.
type Event struct {
	// ItemID identifies the document. Empty means the _id of Prior (or Pending) is used.
	ItemID   string
	ItemName string
	// Prior is the stored state; Pending the state about to be written. Neither is modified.
	Prior   domain.Snapshot
	Pending domain.Snapshot
	// User is the explicit acting user. It wins over the UserMarker and the provider.
	User string
}

// Recorder computes and persists audit records.
type Recorder struct {
	repo    repository.Repository
	emitter telemetry.RecordEmitter

	mu    sync.RWMutex
	users UserProvider

	tracer  trace.Tracer
	records metric.Int64Counter
	changes metric.Int64Counter
}

// NewRecorder returns a Recorder persisting to repo. users may be nil (NoUser);
// emitter may be nil, otherwise it receives every persisted record asynchronously.
func NewRecorder(repo repository.Repository, users UserProvider, emitter telemetry.RecordEmitter) *Recorder {
	if users == nil {
		users = NoUser
	}
	r := &Recorder{
		repo:    repo,
		emitter: emitter,
		users:   users,
		tracer:  otel.Tracer(instrumentationName),
	}
	meter := otel.Meter(instrumentationName)
	var err error
	if r.records, err = meter.Int64Counter("docaudit.audit.records",
		metric.WithDescription("Audit records persisted")); err != nil {
		log.Printf("audit: records counter: %v", err)
		r.records, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter("docaudit.audit.records")
	}
	if r.changes, err = meter.Int64Counter("docaudit.audit.changes",
		metric.WithDescription("Change entries persisted across all audit records")); err != nil {
		log.Printf("audit: changes counter: %v", err)
		r.changes, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter("docaudit.audit.changes")
	}
	return r
}

// SetUserProvider swaps the provider consulted when an operation names no user.
// A nil provider restores NoUser. Safe for concurrent use with Record.
func (r *Recorder) SetUserProvider(p UserProvider) {
	if p == nil {
		p = NoUser
	}
	r.mu.Lock()
	r.users = p
	r.mu.Unlock()
}

// UserProvider returns the current provider.
func (r *Recorder) UserProvider() UserProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users
}

// ResolveUser picks the acting user: explicit, then a non-empty string UserMarker on
// pending, then the provider. It returns ErrUserRequired when none resolves.
func (r *Recorder) ResolveUser(ctx context.Context, explicit string, pending domain.Snapshot) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if u, ok := pending[UserMarker].(string); ok && u != "" {
		return u, nil
	}
	if u, ok := r.UserProvider().CurrentUser(ctx); ok && u != "" {
		return u, nil
	}
	return "", ErrUserRequired
}

// Record audits ev. It returns the persisted record, or nil when the document did not
// change in any audited field. The user is resolved before anything is compared, so
// a missing user fails even a no-op mutation. Repository errors are returned wrapped.
func (r *Recorder) Record(ctx context.Context, ev Event) (*domain.AuditRecord, error) {
	ctx, span := r.tracer.Start(ctx, "audit.Record",
		trace.WithAttributes(attribute.String("audit.item_name", ev.ItemName)))
	defer span.End()

	user, err := r.ResolveUser(ctx, ev.User, ev.Pending)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	before, err := diff.Clone(StripMarker(ev.Prior))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	after, err := diff.Clone(StripMarker(ev.Pending))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	cm := Classify(diff.Compute(before, after, diff.MetadataFilter), before, after)
	span.SetAttributes(attribute.Int("audit.change_count", len(cm)))
	if len(cm) == 0 {
		return nil, nil
	}

	itemID := ev.ItemID
	if itemID == "" {
		itemID = documentID(before, after)
	}
	rec := &domain.AuditRecord{
		ID:       uuid.New().String(),
		ItemID:   itemID,
		ItemName: ev.ItemName,
		Changes:  cm,
		User:     user,
	}
	if err := r.repo.Create(ctx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist audit record")
		return nil, fmt.Errorf("audit: persist record for %s %s: %w", ev.ItemName, itemID, err)
	}
	span.SetAttributes(attribute.String("audit.id", rec.ID))

	attrs := metric.WithAttributes(attribute.String("item_name", ev.ItemName))
	r.records.Add(ctx, 1, attrs)
	r.changes.Add(ctx, int64(len(cm)), attrs)
	telemetry.EmitAsync(r.emitter, ctx, rec)
	return rec, nil
}

// StripMarker returns s without UserMarker. s is returned as is when it has no marker.
func StripMarker(s domain.Snapshot) domain.Snapshot {
	if _, ok := s[UserMarker]; !ok {
		return s
	}
	out := maps.Clone(s)
	delete(out, UserMarker)
	return out
}

func documentID(snapshots ...domain.Snapshot) string {
	for _, s := range snapshots {
		if id, ok := s["_id"]; ok && id != nil {
			return fmt.Sprint(id)
		}
	}
	return ""
}
