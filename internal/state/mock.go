package state

import (
	"database/sql"
	"sync"
)

// Mock is a test double for Manager.
type Mock struct {
	mu        sync.Mutex
	session   *LastfmSession
	history   []string
	plays     []PlayRecord
	scrobbles []ScrobbleRecord
	totals    *Totals
	err       error
	closed    bool
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) DB() *sql.DB { return nil }

func (m *Mock) GetLastfmSession() (*LastfmSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.err
}

func (m *Mock) SaveLastfmSession(username, sessionKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &LastfmSession{Username: username, SessionKey: sessionKey}
	return m.err
}

func (m *Mock) DeleteLastfmSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return m.err
}

func (m *Mock) SaveHistory(entries []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append([]string(nil), entries...)
}

func (m *Mock) LoadHistory() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history...), m.err
}

func (m *Mock) RecordPlay(p PlayRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plays = append(m.plays, p)
	return m.err
}

func (m *Mock) RecordScrobble(s ScrobbleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrobbles = append(m.scrobbles, s)
	return m.err
}

func (m *Mock) GetTotals(_ int) (*Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.totals != nil {
		t := *m.totals
		return &t, nil
	}
	return &Totals{Plays: len(m.plays), Scrobbles: len(m.scrobbles)}, nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Test helpers

func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Mock) SetTotals(t *Totals) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals = t
}

func (m *Mock) Plays() []PlayRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PlayRecord(nil), m.plays...)
}

func (m *Mock) Scrobbles() []ScrobbleRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ScrobbleRecord(nil), m.scrobbles...)
}

func (m *Mock) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history...)
}

func (m *Mock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
