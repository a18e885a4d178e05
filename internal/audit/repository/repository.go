// Package repository persists audit records.
package repository

import (
	"context"
	"time"

	"docaudit/internal/audit/domain"
)

// Repository defines persistence for audit records. Records are append-only.
type Repository interface {
	// Create stores rec. rec.ID must be set; zero timestamps are filled with the current time.
	Create(ctx context.Context, rec *domain.AuditRecord) error
	// GetByID returns the record for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.AuditRecord, error)
	// ListByItem returns the records of one document, newest first, paginated by limit and offset.
	ListByItem(ctx context.Context, itemName, itemID string, limit, offset int32) ([]*domain.AuditRecord, error)
}

func stamp(rec *domain.AuditRecord, now func() time.Time) {
	t := now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = t
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
}
