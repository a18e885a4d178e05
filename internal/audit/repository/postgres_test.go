package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"docaudit/internal/audit/domain"
	"docaudit/internal/db"
	"docaudit/internal/db/migrate"
)

func openTestDB(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	if err := migrate.Run(dsn, migrate.Up); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewPostgresRepository(conn)
}

func TestPostgresRepository_CreateAndGet(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()
	itemID := uuid.NewString()

	rec := &domain.AuditRecord{
		ID:       uuid.NewString(),
		ItemID:   itemID,
		ItemName: "TestObject",
		User:     "Jack",
		Changes: domain.ChangeMap{
			"name":         domain.Edited("Lucky", "Unlucky"),
			"child.number": domain.Added(int64(9)),
		},
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("second Create should be ignored: %v", err)
	}

	got, err := repo.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("GetByID returned nil")
	}
	if got.ItemID != itemID || got.User != "Jack" || len(got.Changes) != 2 {
		t.Errorf("record = %+v", got)
	}
	if e := got.Changes["name"]; e.Type != domain.ChangeEdit || e.From != "Lucky" || e.To != "Unlucky" {
		t.Errorf("name = %+v", e)
	}
	if e := got.Changes["child.number"]; e.Type != domain.ChangeAdd || e.HasFrom {
		t.Errorf("child.number = %+v", e)
	}

	missing, err := repo.GetByID(ctx, uuid.NewString())
	if err != nil || missing != nil {
		t.Errorf("GetByID(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestPostgresRepository_ListByItem(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()
	itemID := uuid.NewString()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		rec := &domain.AuditRecord{
			ID:        uuid.NewString(),
			ItemID:    itemID,
			ItemName:  "TestObject",
			User:      "Jack",
			Changes:   domain.ChangeMap{"n": domain.Edited(int64(i), int64(i+1))},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	list, err := repo.ListByItem(ctx, "TestObject", itemID, 2, 0)
	if err != nil {
		t.Fatalf("ListByItem: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if !list[0].CreatedAt.After(list[1].CreatedAt) {
		t.Error("records should be newest first")
	}

	all, err := repo.ListByItem(ctx, "TestObject", itemID, 0, 0)
	if err != nil || len(all) != 3 {
		t.Errorf("ListByItem(all) = %d, %v; want 3", len(all), err)
	}
}
