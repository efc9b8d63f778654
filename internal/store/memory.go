// Snapshot store: sessions live in process memory for the lifetime of the
// process and every save rewrites one JSON file holding the whole table.

package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/kfujino/odowatch/internal/models"
)

// DefaultDirPermissions defines the default permissions for state directories.
const DefaultDirPermissions = 0755

// SnapshotStore keeps all sessions in memory and flushes them to a JSON file.
// The table itself is safe for concurrent use across users; callers still
// must serialize the load-mutate-save cycle per user.
//
// Live sessions are encoded at Save time, while the saving caller still holds
// that user's lock. Flushing then composes the pre-encoded table, so a flush
// for one user never reads another user's live session mid-mutation.
type SnapshotStore struct {
	mu       sync.Mutex
	path     string
	sessions map[string]*models.UserSession
	encoded  map[string]json.RawMessage
}

// NewSnapshotStore creates a snapshot store backed by the configured file.
// An existing snapshot is loaded eagerly; a missing file starts empty.
func NewSnapshotStore(opts ...Option) (*SnapshotStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.SnapshotPath == "" {
		slog.Error("SnapshotStore path not set")
		return nil, fmt.Errorf("snapshot path not set")
	}

	dir := filepath.Dir(cfg.SnapshotPath)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create snapshot directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	s := &SnapshotStore{
		path:     cfg.SnapshotPath,
		sessions: make(map[string]*models.UserSession),
		encoded:  make(map[string]json.RawMessage),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	slog.Debug("SnapshotStore ready", "path", s.path, "sessions", len(s.sessions))
	return s, nil
}

// load reads the snapshot file into memory. A missing file is not an error.
func (s *SnapshotStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		slog.Debug("SnapshotStore no existing snapshot", "path", s.path)
		return nil
	}
	if err != nil {
		slog.Error("SnapshotStore failed to read snapshot", "error", err, "path", s.path)
		return fmt.Errorf("failed to read snapshot %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &s.sessions); err != nil {
		slog.Error("SnapshotStore failed to decode snapshot", "error", err, "path", s.path)
		return fmt.Errorf("failed to decode snapshot %s: %w", s.path, err)
	}
	for userID, sess := range s.sessions {
		sess.EnsureVehicles()
		raw, err := json.Marshal(sess)
		if err != nil {
			slog.Error("SnapshotStore failed to re-encode session", "error", err, "user_id", userID)
			return fmt.Errorf("failed to re-encode session %s: %w", userID, err)
		}
		s.encoded[userID] = raw
	}
	return nil
}

// GetOrCreate returns the stored session for userID or seeds a default one.
func (s *SnapshotStore) GetOrCreate(userID string) (*models.UserSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		sess.EnsureVehicles()
		slog.Debug("SnapshotStore session found", "user_id", userID, "state", sess.State)
		return sess, nil
	}
	sess := models.NewUserSession()
	s.sessions[userID] = sess
	slog.Debug("SnapshotStore session created", "user_id", userID)
	return sess, nil
}

// Save stores the session and rewrites the whole snapshot file. The changed
// directive is ignored here: snapshot persistence is all-or-nothing.
// Encoding happens here, not in flush: the caller holds this user's lock, so
// the session is stable while it is marshaled.
func (s *SnapshotStore) Save(userID string, session *models.UserSession, changed []models.VehicleName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(session)
	if err != nil {
		slog.Error("SnapshotStore save failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to encode session %s: %w", userID, err)
	}
	s.sessions[userID] = session
	s.encoded[userID] = raw
	if err := s.flush(); err != nil {
		slog.Error("SnapshotStore save failed", "error", err, "user_id", userID)
		return err
	}
	slog.Debug("SnapshotStore save succeeded", "user_id", userID, "changed", len(changed))
	return nil
}

// flush atomically replaces the snapshot file with the pre-encoded table. The
// table is written to a temp file in the same directory and renamed into
// place so readers never observe a partial write. Only encoded blobs are
// touched; live sessions another user may be mutating are never read.
func (s *SnapshotStore) flush() error {
	data, err := json.MarshalIndent(s.encoded, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Close flushes the table one final time.
func (s *SnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slog.Debug("SnapshotStore closing", "path", s.path)
	return s.flush()
}
