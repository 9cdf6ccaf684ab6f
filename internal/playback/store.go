// internal/playback/store.go
package playback

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a copy of the shared playback state handed to readers.
type Snapshot struct {
	Track      *Track
	LastUpdate time.Time
	Paused     bool
}

// Position returns the live position estimate at now. Every consumer must
// go through this so the main view, mini view and timers agree.
func (s Snapshot) Position(now time.Time) time.Duration {
	if s.Track == nil {
		return 0
	}
	return Project(s.Track.Position, s.Track.Duration, s.LastUpdate, now)
}

// Project extrapolates a position observed at lastUpdate to now, clamped to
// duration when the duration is known.
func Project(position, duration time.Duration, lastUpdate, now time.Time) time.Duration {
	p := position
	if elapsed := now.Sub(lastUpdate); elapsed > 0 {
		p += elapsed
	}
	if duration > 0 && p > duration {
		p = duration
	}
	return p
}

// Store holds the process-wide current track. The poll loop is the only
// writer; everyone else reads copies through Snapshot.
type Store struct {
	mu         sync.RWMutex
	track      *Track
	lastUpdate time.Time

	paused atomic.Bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{lastUpdate: time.Now()}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Track:      s.track.Clone(),
		LastUpdate: s.lastUpdate,
		Paused:     s.paused.Load(),
	}
}

// Current returns a copy of the current track, or nil.
func (s *Store) Current() *Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.track.Clone()
}

// SetTrack replaces the current track and stamps the update time.
func (s *Store) SetTrack(t *Track, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = t.Clone()
	s.lastUpdate = now
}

// UpdateProgress refreshes position and duration of the current track
// without replacing it. Returns false if there is no current track.
func (s *Store) UpdateProgress(position, duration time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track == nil {
		return false
	}
	s.track.Position = position
	s.track.Duration = duration
	s.lastUpdate = now
	return true
}

// SetPaused flips the pause flag. Safe from any goroutine.
func (s *Store) SetPaused(paused bool) {
	s.paused.Store(paused)
}

// IsPaused reports the pause flag.
func (s *Store) IsPaused() bool {
	return s.paused.Load()
}
