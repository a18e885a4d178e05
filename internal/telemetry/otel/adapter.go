package otel

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"docaudit/internal/audit/domain"
	"docaudit/internal/telemetry"
)

// recordLogger is the subset of otellog.Logger used by the emitter.
type recordLogger interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewRecordEmitter returns a RecordEmitter that writes each audit record as an OTel log record.
// If provider is nil, returns a no-op emitter.
func NewRecordEmitter(provider *sdklog.LoggerProvider) telemetry.RecordEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("docaudit.audit")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.AuditRecord) error { return nil }

type otelEmitter struct {
	logger recordLogger
}

// Emit maps the record onto a log record: changes as JSON body, identity fields as attributes.
func (e *otelEmitter) Emit(ctx context.Context, rec *domain.AuditRecord) error {
	if rec == nil {
		return nil
	}
	lr := otellog.Record{}
	lr.SetSeverity(otellog.SeverityInfo)
	if !rec.CreatedAt.IsZero() {
		lr.SetTimestamp(rec.CreatedAt)
	} else {
		lr.SetTimestamp(time.Now().UTC())
	}
	if len(rec.Changes) > 0 {
		body, err := json.Marshal(rec.Changes)
		if err != nil {
			return err
		}
		lr.SetBody(otellog.BytesValue(body))
	}
	lr.AddAttributes(otellog.Int("change_count", len(rec.Changes)))
	if rec.ID != "" {
		lr.AddAttributes(otellog.String("audit_id", rec.ID))
	}
	if rec.ItemID != "" {
		lr.AddAttributes(otellog.String("item_id", rec.ItemID))
	}
	if rec.ItemName != "" {
		lr.AddAttributes(otellog.String("item_name", rec.ItemName))
	}
	if rec.User != "" {
		lr.AddAttributes(otellog.String("user", rec.User))
	}
	e.logger.Emit(ctx, lr)
	return nil
}
