//go:build integration

package postgres

import (
	"os"
	"testing"

	"spendwise/internal/storage"
	"spendwise/internal/storage/storagetest"
)

// Run with: SPENDWISE_TEST_POSTGRES_DSN=... go test -tags=integration ./internal/storage/postgres

func TestStore(t *testing.T) {
	dsn := os.Getenv("SPENDWISE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SPENDWISE_TEST_POSTGRES_DSN not set, skipping integration test")
	}

	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := Open(dsn)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if err := s.db.Exec("TRUNCATE users, categories, expenses, insight_snapshots, snapshot_queue").Error; err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}
