// Package dbtest connects integration tests to the database named by TEST_DATABASE_URL.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/shared/db/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool migrates the test database and returns a pool on it. Tables are shared between packages,
// so tests only look at rows they created.
// The test is skipped when TEST_DATABASE_URL is unset or unreachable.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Skipf("database unreachable: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("database unreachable: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrations.RunMigrations(url); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return pool
}
