package testutil

import (
	"testing"

	"gorm.io/gorm"

	"rotinas/internal/repository"
)

// NewTestDB opens an in-memory SQLite database with all migrations applied.
// It automatically closes the database when the test completes.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := repository.NewDB(":memory:", nil)
	if err != nil {
		t.Fatalf("creating test db: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err != nil {
			return
		}
		if err := sqlDB.Close(); err != nil {
			t.Errorf("closing test db: %v", err)
		}
	})

	return db
}
