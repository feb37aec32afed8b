package storage_test

import (
	"path/filepath"
	"testing"

	"haushaltsbuch/internal/storage"
	"haushaltsbuch/internal/storage/storagetest"
)

func TestSQLiteRepositoryContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
		if err != nil {
			t.Fatalf("NewSQLiteRepository: %v", err)
		}
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		if err := storage.RunMigrations(path); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
}
