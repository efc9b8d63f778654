// PostgreSQL-backed store, same shape as the SQLite variant.

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "embed"

	"github.com/kfujino/odowatch/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum lifetime of a connection.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists vehicle records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB

	// cache mirrors SQLiteStore: conversational fields are per-process.
	mu    sync.Mutex
	cache map[string]*models.UserSession
}

// NewPostgresStore creates a Postgres store based on the provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{
		db:    db,
		cache: make(map[string]*models.UserSession),
	}, nil
}

// GetOrCreate returns the cached session for userID, reconstructing it from
// stored vehicle rows on a cache miss.
func (s *PostgresStore) GetOrCreate(userID string) (*models.UserSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.cache[userID]; ok {
		sess.EnsureVehicles()
		return sess, nil
	}

	rows, err := s.db.Query(`SELECT vehicle, start_km, max_km, last_km FROM vehicle_records WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore GetOrCreate query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query vehicle records for %s: %w", userID, err)
	}
	defer rows.Close()

	sess, err := loadVehicleRows(rows)
	if err != nil {
		slog.Error("PostgresStore GetOrCreate scan failed", "error", err, "user_id", userID)
		return nil, err
	}
	s.cache[userID] = sess
	slog.Debug("PostgresStore session loaded", "user_id", userID)
	return sess, nil
}

// Save upserts exactly the changed vehicle records and refreshes the cache.
func (s *PostgresStore) Save(userID string, session *models.UserSession, changed []models.VehicleName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range changed {
		rec := session.Vehicles[name]
		if rec == nil {
			continue
		}
		_, err := s.db.Exec(`
			INSERT INTO vehicle_records (user_id, vehicle, start_km, max_km, last_km)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, vehicle) DO UPDATE SET
				start_km = EXCLUDED.start_km,
				max_km = EXCLUDED.max_km,
				last_km = EXCLUDED.last_km`,
			userID, string(name), rec.StartKm, rec.MaxKm, rec.LastKm)
		if err != nil {
			slog.Error("PostgresStore Save upsert failed", "error", err, "user_id", userID, "vehicle", name)
			return fmt.Errorf("failed to upsert vehicle record %s/%s: %w", userID, name, err)
		}
	}
	s.cache[userID] = session
	slog.Debug("PostgresStore Save succeeded", "user_id", userID, "changed", len(changed))
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	if err := s.db.Close(); err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
		return err
	}
	return nil
}
