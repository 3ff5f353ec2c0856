package db

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

//go:embed migrations
var migrationsFS embed.FS

// DevMode switches migration loading from the embedded filesystem to
// the on-disk internal/db/migrations directory, so schema work does
// not require rebuilding the binary.
var DevMode = false

// MigrationsFS returns the migration filesystem with the *.sql files
// at its root.
func MigrationsFS() (fs.FS, error) {
	if DevMode {
		dir := "internal/db/migrations"
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("dev mode migrations directory: %w", err)
		}
		return os.DirFS(dir), nil
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	return sub, nil
}
