package state

import "database/sql"

// Interface defines the state manager contract for dependency injection and testing.
type Interface interface {
	DB() *sql.DB
	GetLastfmSession() (*LastfmSession, error)
	SaveLastfmSession(username, sessionKey string) error
	DeleteLastfmSession() error
	SaveHistory(entries []string)
	LoadHistory() ([]string, error)
	RecordPlay(p PlayRecord) error
	RecordScrobble(s ScrobbleRecord) error
	GetTotals(topN int) (*Totals, error)
	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
