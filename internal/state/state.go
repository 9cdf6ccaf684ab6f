// Package state persists what must survive a restart: the Last.fm session,
// the recently played list and the play and scrobble records behind the
// statistics.
package state

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName      = "listenbridge"
	dbFileName   = "state.db"
	saveDebounce = 500 * time.Millisecond
)

type Manager struct {
	db        *sql.DB
	saveMu    sync.Mutex
	saveTimer *time.Timer
	pending   []string
	dirty     bool
}

// Open opens the state database in the XDG data directory.
func Open() (*Manager, error) {
	dbPath, err := Path()
	if err != nil {
		return nil, err
	}
	return OpenPath(dbPath)
}

// OpenPath opens the state database at path. ":memory:" gives a private
// in-memory database.
func OpenPath(path string) (*Manager, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite serialises writers anyway, and an in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{db: db}, nil
}

// Path returns the location of the state database.
func Path() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}

func (m *Manager) Close() error {
	flushErr := m.Flush()
	if err := m.db.Close(); err != nil {
		return err
	}
	return flushErr
}

func (m *Manager) DB() *sql.DB {
	return m.db
}

// SaveHistory schedules the recently played list to be written. Bursts of
// changes are coalesced into one write.
func (m *Manager) SaveHistory(entries []string) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.pending = append([]string(nil), entries...)
	m.dirty = true

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}

	m.saveTimer = time.AfterFunc(saveDebounce, func() {
		_ = m.Flush() //nolint:errcheck // retried by the next save or Close
	})
}

// Flush writes a scheduled history save immediately.
func (m *Manager) Flush() error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
		m.saveTimer = nil
	}
	pending, dirty := m.pending, m.dirty
	m.pending, m.dirty = nil, false
	m.saveMu.Unlock()

	if !dirty {
		return nil
	}
	return saveHistory(m.db, pending)
}

// LoadHistory returns the saved recently played list, newest first.
func (m *Manager) LoadHistory() ([]string, error) {
	return loadHistory(m.db)
}
