// Package storagetest opens migrated in-memory databases for tests.
package storagetest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/platinummonkey/adlbuilder/pkg/storage"
)

// NewSQLite returns a migrated in-memory SQLite database closed at test end
func NewSQLite(t testing.TB) *sql.DB {
	t.Helper()

	cfg := storage.DefaultConfig()
	cfg.DSN = ":memory:"

	db, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := storage.Migrate(context.Background(), db, storage.DriverSQLite); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}

	return db
}
