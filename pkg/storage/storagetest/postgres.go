//go:build integration

package storagetest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/adlbuilder/pkg/storage"
)

// NewPostgres starts a throwaway PostgreSQL container, migrates it and returns
// an open pool. The test is skipped when no container runtime is available.
func NewPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	provider.Close()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("adlbuilder_test"),
		postgres.WithUsername("adlbuilder"),
		postgres.WithPassword("adlbuilder_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to read connection string: %v", err)
	}

	cfg := storage.DefaultConfig()
	cfg.Driver = storage.DriverPostgres
	cfg.DSN = dsn
	db, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := storage.Migrate(ctx, db, storage.DriverPostgres); err != nil {
		t.Fatalf("failed to migrate postgres: %v", err)
	}
	return db
}
