// Package telemetry fans persisted audit records out to side channels (OTel logs, Kafka).
package telemetry

import (
	"context"
	"errors"

	"docaudit/internal/audit/domain"
)

// RecordEmitter publishes a persisted audit record. Best-effort; callers log and ignore errors.
type RecordEmitter interface {
	Emit(ctx context.Context, rec *domain.AuditRecord) error
}

// Emitters sends each record to every emitter in order. Nil entries are skipped.
type Emitters []RecordEmitter

// Emit calls every emitter even when an earlier one fails and returns the joined errors.
func (es Emitters) Emit(ctx context.Context, rec *domain.AuditRecord) error {
	var errs []error
	for _, e := range es {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
