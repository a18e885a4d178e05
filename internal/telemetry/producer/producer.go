// Package producer publishes audit records to a message broker so other systems can archive them.
package producer

import (
	"context"

	"docaudit/internal/audit/domain"
)

// Producer publishes audit records. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit publishes a single record. Implementations may block briefly; call from a goroutine if needed.
	Emit(ctx context.Context, rec *domain.AuditRecord) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
