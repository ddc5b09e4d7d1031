// Package state provides the durable checkpoint store: per-stream
// last-completed-day bookmarks plus the currently-syncing marker. The store
// is owned exclusively by the sync driver for the run's duration and is the
// only entity that must outlive the process; concurrent runs against the
// same file are unsupported.
package state

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/datataps/roomtap/pkg/config"
	"github.com/datataps/roomtap/pkg/errors"
)

// State is the persisted checkpoint structure
type State struct {
	CurrentlySyncing string            `json:"currently_syncing,omitempty"`
	Bookmarks        map[string]string `json:"bookmarks"`
}

// Store loads, mutates and persists checkpoint state. Every mutation is
// persisted immediately with an atomic write-then-rename, so a crash after a
// persisted checkpoint never re-fetches that day and a crash before never
// loses an older bookmark.
type Store struct {
	path   string
	state  State
	logger *zap.Logger

	mu sync.Mutex
}

// Load reads the state file at path, starting fresh when it doesn't exist
func Load(path string, logger *zap.Logger) (*Store, error) {
	store := &Store{
		path:   path,
		state:  State{Bookmarks: make(map[string]string)},
		logger: logger.With(zap.String("component", "state")),
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is caller controlled
	if err != nil {
		if os.IsNotExist(err) {
			store.logger.Info("no existing state, starting fresh", zap.String("path", path))
			return store, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to read state file")
	}

	if err := json.Unmarshal(data, &store.state); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to parse state file")
	}
	if store.state.Bookmarks == nil {
		store.state.Bookmarks = make(map[string]string)
	}

	store.logger.Info("state loaded",
		zap.String("path", path),
		zap.Int("bookmarks", len(store.state.Bookmarks)),
		zap.String("currently_syncing", store.state.CurrentlySyncing))

	return store, nil
}

// Bookmark returns the stream's last completed day, if any
func (s *Store) Bookmark(stream string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.state.Bookmarks[stream]
	if !ok {
		return time.Time{}, false
	}
	day, err := time.Parse(config.DateFormat, raw)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// SetBookmark advances a stream's bookmark to the completed day and persists
func (s *Store) SetBookmark(stream string, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Bookmarks[stream] = day.Format(config.DateFormat)
	return s.persistLocked()
}

// CurrentlySyncing returns the in-progress stream marker, "" when clear.
// A non-empty marker at load time means the prior run was interrupted
// mid-stream.
func (s *Store) CurrentlySyncing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentlySyncing
}

// SetCurrentlySyncing marks a stream as in progress and persists
func (s *Store) SetCurrentlySyncing(stream string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.CurrentlySyncing = stream
	return s.persistLocked()
}

// ClearCurrentlySyncing clears the marker on normal completion and persists
func (s *Store) ClearCurrentlySyncing() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.CurrentlySyncing = ""
	return s.persistLocked()
}

// Snapshot returns a copy of the current state for emission
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := State{
		CurrentlySyncing: s.state.CurrentlySyncing,
		Bookmarks:        make(map[string]string, len(s.state.Bookmarks)),
	}
	for k, v := range s.state.Bookmarks {
		copied.Bookmarks[k] = v
	}
	return copied
}

// persistLocked writes the state atomically. Callers must hold mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to marshal state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to write state file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to replace state file")
	}

	s.logger.Debug("state persisted", zap.String("path", filepath.Base(s.path)))
	return nil
}
