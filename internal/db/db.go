package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the application's sqlite handle. Schema management happens
// exclusively through migrations; opening a database never creates
// tables.
type DB struct {
	*sql.DB
}

// startupPragmas are applied to every new database before use. WAL
// keeps readers unblocked while a smoothing run inserts frames; the
// busy timeout covers the writer contention that remains.
var startupPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// OpenDB opens (creating if needed) the sqlite database at path and
// applies the startup pragmas.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	for _, pragma := range startupPragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	return &DB{sqlDB}, nil
}
