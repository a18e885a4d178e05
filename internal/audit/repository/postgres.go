package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"docaudit/internal/audit/domain"
)

// PostgresRepository archives audit records in the audits table (see internal/db/migrations).
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository returns an audit repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

const insertAudit = `INSERT INTO audits (id, item_id, item_name, changes, user_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`

const selectAudit = `SELECT id, item_id, item_name, changes, user_id, created_at, updated_at FROM audits`

// Create inserts rec. Re-inserting an existing id is a no-op so replayed messages are harmless.
func (r *PostgresRepository) Create(ctx context.Context, rec *domain.AuditRecord) error {
	if rec == nil || rec.ID == "" {
		return errors.New("audit: record id is required")
	}
	stamp(rec, r.now)
	changes, err := json.Marshal(rec.Changes)
	if err != nil {
		return fmt.Errorf("audit: encode changes: %w", err)
	}
	_, err = r.db.ExecContext(ctx, insertAudit,
		rec.ID, rec.ItemID, rec.ItemName, string(changes), rec.User, rec.CreatedAt, rec.UpdatedAt)
	return err
}

// GetByID returns the audit record for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditRecord, error) {
	rec, err := scanAudit(r.db.QueryRowContext(ctx, selectAudit+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// ListByItem returns the records of one document, newest first. A non-positive limit returns all rows.
func (r *PostgresRepository) ListByItem(ctx context.Context, itemName, itemID string, limit, offset int32) ([]*domain.AuditRecord, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := r.db.QueryContext(ctx,
		selectAudit+` WHERE item_name = $1 AND item_id = $2 ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`,
		itemName, itemID, lim, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditRecord
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudit(row rowScanner) (*domain.AuditRecord, error) {
	var (
		rec     domain.AuditRecord
		changes []byte
	)
	if err := row.Scan(&rec.ID, &rec.ItemID, &rec.ItemName, &changes, &rec.User, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(changes, &rec.Changes); err != nil {
		return nil, fmt.Errorf("audit: decode changes of %s: %w", rec.ID, err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}
