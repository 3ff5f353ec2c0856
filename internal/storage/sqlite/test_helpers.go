package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/sidewalk-data/trajectory.report/internal/db"
)

// setupTestDB creates a temp database and brings it to the latest
// schema with the real embedded migrations, so store tests exercise
// exactly the tables production runs against.
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	fsys, err := db.MigrationsFS()
	if err != nil {
		database.Close()
		t.Fatalf("Failed to load migrations: %v", err)
	}
	if err := database.MigrateUp(fsys); err != nil {
		database.Close()
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	cleanup := func() {
		database.Close()
	}

	return database.DB, cleanup
}
