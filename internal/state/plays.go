package state

import (
	"database/sql"
	"time"

	dbutil "github.com/llehouerou/listenbridge/internal/db"
)

// PlayRecord is one observed track start.
type PlayRecord struct {
	Artist    string
	Title     string
	Album     string
	StartedAt time.Time
	Duration  time.Duration
}

// ScrobbleRecord is one accepted scrobble.
type ScrobbleRecord struct {
	Artist      string
	Title       string
	Album       string
	StartedAt   time.Time
	ScrobbledAt time.Time
}

// ArtistCount is the number of plays of one artist.
type ArtistCount struct {
	Artist string
	Plays  int
}

// Totals aggregates every recorded play and scrobble.
type Totals struct {
	Plays      int
	ListenTime time.Duration
	Scrobbles  int
	FirstPlay  time.Time // zero when nothing was recorded
	TopArtists []ArtistCount
}

// RecordPlay stores a track start.
func (m *Manager) RecordPlay(p PlayRecord) error {
	_, err := m.db.Exec(`
		INSERT INTO plays (artist, title, album, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?)
	`, p.Artist, p.Title, p.Album, p.StartedAt.Unix(), p.Duration.Milliseconds())
	return err
}

// RecordScrobble stores an accepted scrobble.
func (m *Manager) RecordScrobble(s ScrobbleRecord) error {
	_, err := m.db.Exec(`
		INSERT INTO scrobbles (artist, title, album, started_at, scrobbled_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.Artist, s.Title, s.Album, s.StartedAt.Unix(), s.ScrobbledAt.Unix())
	return err
}

// GetTotals returns the cumulative statistics with the topN most played
// artists. Ties are broken alphabetically.
func (m *Manager) GetTotals(topN int) (*Totals, error) {
	totals := &Totals{}
	err := dbutil.WithTx(m.db, func(tx *sql.Tx) error {
		var listenMS int64
		var firstPlay sql.NullInt64
		err := tx.QueryRow(`
			SELECT COUNT(*), COALESCE(SUM(duration_ms), 0), MIN(started_at) FROM plays
		`).Scan(&totals.Plays, &listenMS, &firstPlay)
		if err != nil {
			return err
		}
		totals.ListenTime = time.Duration(listenMS) * time.Millisecond
		totals.FirstPlay = dbutil.NullUnixTime(firstPlay)

		if err := tx.QueryRow(`SELECT COUNT(*) FROM scrobbles`).Scan(&totals.Scrobbles); err != nil {
			return err
		}

		if topN <= 0 {
			return nil
		}
		rows, err := tx.Query(`
			SELECT artist, COUNT(*) AS n FROM plays
			GROUP BY artist
			ORDER BY n DESC, artist ASC
			LIMIT ?
		`, topN)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var ac ArtistCount
			if err := rows.Scan(&ac.Artist, &ac.Plays); err != nil {
				return err
			}
			totals.TopArtists = append(totals.TopArtists, ac)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}
