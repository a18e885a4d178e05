package telemetry

import (
	"context"
	"log"
	"time"

	"docaudit/internal/audit/domain"
)

// emitTimeout bounds a single async emit. Used by EmitAsync and ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the servers stop before shutting down
// OTel providers and the Kafka producer, so in-flight emits can finish.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine so the audited operation is not blocked.
//
// emitter and rec may be nil; EmitAsync then returns without starting a goroutine.
// The goroutine uses context.Background() with emitTimeout: cancelling the caller's
// context does not abort an in-flight emit.
func EmitAsync(emitter RecordEmitter, ctx context.Context, rec *domain.AuditRecord) {
	if emitter == nil || rec == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, rec); err != nil {
			log.Printf("telemetry: async emit of audit %s failed: %v", rec.ID, err)
		}
	}()
}
