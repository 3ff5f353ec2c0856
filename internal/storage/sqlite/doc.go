// Package sqlite contains SQLite repository implementations for the
// geometry and smoothing domain types.
//
// All database read/write operations for calibrations, mapping
// sessions and smoothing runs belong here rather than in the domain
// packages. This keeps the domain logic free of SQL noise and makes it
// easier to swap storage backends for testing.
//
// The schema is owned by internal/db/migrations; these stores assume
// the migrations have been applied.
package sqlite
