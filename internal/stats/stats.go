// Package stats counts what was listened to during the current session and
// records every play and scrobble for the cumulative totals.
package stats

import (
	"cmp"
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/llehouerou/listenbridge/internal/playback"
	"github.com/llehouerou/listenbridge/internal/scrobble"
	"github.com/llehouerou/listenbridge/internal/state"
)

// DefaultTopArtists is how many artists the summaries list.
const DefaultTopArtists = 5

// Recorder persists plays and scrobbles.
type Recorder interface {
	RecordPlay(p state.PlayRecord) error
	RecordScrobble(s state.ScrobbleRecord) error
}

// Session holds the counters of the running session.
type Session struct {
	Started    time.Time
	Tracks     int
	ListenTime time.Duration
	Scrobbles  int
	Artists    map[string]int
}

// TopArtists returns the n most played artists, ties sorted by name.
func (s Session) TopArtists(n int) []state.ArtistCount {
	if n <= 0 {
		return nil
	}
	out := make([]state.ArtistCount, 0, len(s.Artists))
	for artist, plays := range s.Artists {
		out = append(out, state.ArtistCount{Artist: artist, Plays: plays})
	}
	slices.SortFunc(out, func(a, b state.ArtistCount) int {
		if c := cmp.Compare(b.Plays, a.Plays); c != 0 {
			return c
		}
		return cmp.Compare(a.Artist, b.Artist)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Collector accumulates session counters. Safe for concurrent use.
type Collector struct {
	rec    Recorder
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	session Session
}

// New creates a collector whose session starts now. rec may be nil, in
// which case nothing is persisted.
func New(rec Recorder, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Collector{rec: rec, logger: logger, now: time.Now}
	c.session = Session{Started: c.now(), Artists: make(map[string]int)}
	return c
}

// Run consumes track changes until ctx is cancelled or sub is closed.
// Refreshes of the current track are not counted again.
func (c *Collector) Run(ctx context.Context, sub *playback.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Done:
			return nil
		case e := <-sub.TrackChanged:
			if e.Current != nil && !e.IsRefresh() {
				c.TrackStarted(e.Current)
			}
		}
	}
}

// TrackStarted counts a new track. Its full duration is added to the
// listen time.
func (c *Collector) TrackStarted(t *playback.Track) {
	if t == nil {
		return
	}
	now := c.now()

	c.mu.Lock()
	c.session.Tracks++
	c.session.ListenTime += t.Duration
	c.session.Artists[t.Artist]++
	c.mu.Unlock()

	if c.rec == nil {
		return
	}
	err := c.rec.RecordPlay(state.PlayRecord{
		Artist:    t.Artist,
		Title:     t.Title,
		Album:     t.Album,
		StartedAt: now,
		Duration:  t.Duration,
	})
	if err != nil {
		c.logger.Warn("record play failed", "title", t.Title, "error", err)
	}
}

// Scrobbled counts an accepted scrobble. It matches scrobble.Tracker's
// OnScrobbled hook.
func (c *Collector) Scrobbled(p scrobble.Play) {
	c.mu.Lock()
	c.session.Scrobbles++
	c.mu.Unlock()

	if c.rec == nil {
		return
	}
	err := c.rec.RecordScrobble(state.ScrobbleRecord{
		Artist:      p.Artist,
		Title:       p.Title,
		Album:       p.Album,
		StartedAt:   p.StartedAt,
		ScrobbledAt: c.now(),
	})
	if err != nil {
		c.logger.Warn("record scrobble failed", "title", p.Title, "error", err)
	}
}

// Session returns a copy of the session counters.
func (c *Collector) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	s.Artists = maps.Clone(c.session.Artists)
	return s
}
