// Package store provides session storage backends for odowatch.
//
// It includes a snapshot store that keeps every session in process memory and
// flushes the whole table to a JSON file on each mutation, and SQL-backed
// stores (SQLite, PostgreSQL) that persist one row per (user, vehicle). All
// backends observe the same conversation contract: GetOrCreate never returns a
// session missing a known vehicle, and Save persists exactly the mutation the
// conversation engine declared.
package store

import (
	"strings"

	"github.com/kfujino/odowatch/internal/models"
)

// SessionStore loads and persists user sessions.
type SessionStore interface {
	// GetOrCreate returns the session for userID, seeding a fresh session with
	// a zero record for every known vehicle when none exists.
	GetOrCreate(userID string) (*models.UserSession, error)
	// Save persists the mutation named by the conversation engine's directive:
	// the whole session table for snapshot backends, exactly the changed
	// vehicle records for SQL backends.
	Save(userID string, session *models.UserSession, changed []models.VehicleName) error
	// Close releases the backend's resources.
	Close() error
}

// Opts holds configuration for store constructors.
type Opts struct {
	// DSN is the database connection string for SQL backends.
	DSN string
	// SnapshotPath is the JSON snapshot file for the in-memory backend.
	SnapshotPath string
}

// Option configures store constructors.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSnapshotPath sets the snapshot file for the in-memory backend.
func WithSnapshotPath(path string) Option {
	return func(o *Opts) { o.SnapshotPath = path }
}

// DetectDSNType returns "postgres" for PostgreSQL-style DSNs and "sqlite" for
// plain file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
