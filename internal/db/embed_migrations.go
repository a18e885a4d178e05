package db

import "embed"

// MigrationFS holds the audit archive schema, applied by cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
