// SQLite-backed store: durable vehicle rows keyed by (user, vehicle), with
// conversational fields held in a per-process session cache.

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "embed"

	"github.com/kfujino/odowatch/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists vehicle records in an SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// cache holds the conversational fields (selected vehicle, dialogue
	// state) that the durable table does not carry. It lives for the process
	// lifetime and is rebuilt from vehicle rows on a miss.
	mu    sync.Mutex
	cache map[string]*models.UserSession
}

// NewSQLiteStore creates an SQLite store with the given DSN (a file path to
// the database). The containing directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{
		db:    db,
		cache: make(map[string]*models.UserSession),
	}, nil
}

// GetOrCreate returns the cached session for userID, reconstructing it from
// stored vehicle rows on a cache miss. Unknown users get zero defaults.
func (s *SQLiteStore) GetOrCreate(userID string) (*models.UserSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.cache[userID]; ok {
		sess.EnsureVehicles()
		return sess, nil
	}

	rows, err := s.db.Query(`SELECT vehicle, start_km, max_km, last_km FROM vehicle_records WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore GetOrCreate query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query vehicle records for %s: %w", userID, err)
	}
	defer rows.Close()

	sess, err := loadVehicleRows(rows)
	if err != nil {
		slog.Error("SQLiteStore GetOrCreate scan failed", "error", err, "user_id", userID)
		return nil, err
	}
	s.cache[userID] = sess
	slog.Debug("SQLiteStore session loaded", "user_id", userID)
	return sess, nil
}

// Save upserts exactly the changed vehicle records and refreshes the cache.
func (s *SQLiteStore) Save(userID string, session *models.UserSession, changed []models.VehicleName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range changed {
		rec := session.Vehicles[name]
		if rec == nil {
			continue
		}
		_, err := s.db.Exec(`
			INSERT INTO vehicle_records (user_id, vehicle, start_km, max_km, last_km)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id, vehicle) DO UPDATE SET
				start_km = excluded.start_km,
				max_km = excluded.max_km,
				last_km = excluded.last_km`,
			userID, string(name), rec.StartKm, rec.MaxKm, rec.LastKm)
		if err != nil {
			slog.Error("SQLiteStore Save upsert failed", "error", err, "user_id", userID, "vehicle", name)
			return fmt.Errorf("failed to upsert vehicle record %s/%s: %w", userID, name, err)
		}
	}
	s.cache[userID] = session
	slog.Debug("SQLiteStore Save succeeded", "user_id", userID, "changed", len(changed))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	if err := s.db.Close(); err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
		return err
	}
	return nil
}
