// Package scrobble decides when the current track has been listened to long
// enough and submits it, at most once per track.
package scrobble

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/llehouerou/listenbridge/internal/lastfm"
	"github.com/llehouerou/listenbridge/internal/playback"
)

const (
	// MinDuration is the length below which the fixed MinElapsed rule applies.
	MinDuration = 30 * time.Second
	// MinElapsed is how long short or unknown-length tracks must play.
	MinElapsed = 30 * time.Second
	// MaxScrobblePoint caps the half-duration rule for long tracks.
	MaxScrobblePoint = 240 * time.Second
)

// Service is the scrobble API the tracker reports to.
type Service interface {
	IsAuthenticated() bool
	UpdateNowPlaying(ctx context.Context, track lastfm.ScrobbleTrack) error
	Scrobble(ctx context.Context, track lastfm.ScrobbleTrack) (lastfm.ScrobbleResult, error)
}

// Play describes an accepted scrobble.
type Play struct {
	Artist    string
	Title     string
	Album     string
	StartedAt time.Time
	Duration  time.Duration
}

// ScrobblePoint returns how far into a track of the given length the
// scrobble becomes due. Zero means the length is unknown or too short for
// the proportional rule.
func ScrobblePoint(duration time.Duration) time.Duration {
	if duration <= MinDuration {
		return 0
	}
	return min(duration/2, MaxScrobblePoint)
}

// Eligible reports whether a track may be scrobbled. Long tracks qualify
// when either the wall-clock time since the track started or the player's
// reported position reaches the scrobble point, whichever comes first.
// Short or unknown-length tracks qualify after MinElapsed of wall-clock time.
func Eligible(duration, elapsed, position time.Duration) bool {
	if p := ScrobblePoint(duration); p > 0 {
		return elapsed >= p || position >= p
	}
	return elapsed >= MinElapsed
}

// Tracker holds the scrobble state of the one track being tracked. All
// methods except SetService are meant to be called from the poll loop.
type Tracker struct {
	svcMu sync.RWMutex
	svc   Service

	logger      *slog.Logger
	onScrobbled func(Play)

	key          playback.Key
	startTime    time.Time
	duration     time.Duration
	hasScrobbled bool
}

// NewTracker creates a tracker. svc may be nil (scrobbling disabled).
func NewTracker(svc Service, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{svc: svc, logger: logger}
}

// SetService swaps the scrobble service, e.g. after new credentials were
// configured. Tracking state is kept.
func (t *Tracker) SetService(svc Service) {
	t.svcMu.Lock()
	t.svc = svc
	t.svcMu.Unlock()
}

// OnScrobbled registers a hook called after each accepted scrobble.
func (t *Tracker) OnScrobbled(fn func(Play)) {
	t.onScrobbled = fn
}

func (t *Tracker) service() Service {
	t.svcMu.RLock()
	defer t.svcMu.RUnlock()
	return t.svc
}

// Authenticated reports whether a service with a session is configured.
func (t *Tracker) Authenticated() bool {
	svc := t.service()
	return svc != nil && svc.IsAuthenticated()
}

// Observe starts tracking track unless its raw key is the one already
// tracked. Returns true if tracking was reset. Coming back to a key after
// another one restarts it from scratch.
func (t *Tracker) Observe(track *playback.Track) bool {
	if track == nil {
		return false
	}
	key := track.Key()
	if key == t.key {
		return false
	}
	t.key = key
	t.startTime = time.Now().UTC()
	t.duration = track.Duration
	t.hasScrobbled = false
	t.logger.Debug("scrobble tracking reset", "key", key.String(), "duration", track.Duration)
	return true
}

// Key returns the tracked key.
func (t *Tracker) Key() playback.Key {
	return t.key
}

// HasScrobbled reports whether the tracked key was already submitted.
func (t *Tracker) HasScrobbled() bool {
	return t.hasScrobbled
}

// NotifyNowPlaying sends a now-playing update. Failures are logged only.
func (t *Tracker) NotifyNowPlaying(ctx context.Context, track *playback.Track) {
	svc := t.service()
	if svc == nil || !svc.IsAuthenticated() || track == nil {
		return
	}
	st := t.scrobbleTrack(track)
	if err := svc.UpdateNowPlaying(ctx, st); err != nil {
		t.logger.Warn("now playing update failed", "artist", st.Artist, "title", st.Track, "error", err)
		return
	}
	t.logger.Info("now playing", "artist", st.Artist, "title", st.Track)
}

// CheckAndScrobble submits the tracked track once it is eligible. It is a
// no-op unless authenticated, track is the tracked key and nothing was
// submitted yet. Transport failures leave the track pending so the next
// call retries; an accepted or ignored scrobble, or a service rejection,
// is final. Returns true if this call completed the scrobble.
func (t *Tracker) CheckAndScrobble(ctx context.Context, track *playback.Track, position time.Duration) bool {
	svc := t.service()
	if svc == nil || !svc.IsAuthenticated() || track == nil || t.hasScrobbled {
		return false
	}
	if track.Key() != t.key {
		return false
	}

	elapsed := time.Since(t.startTime)
	if !Eligible(t.duration, elapsed, position) {
		return false
	}

	st := t.scrobbleTrack(track)
	res, err := svc.Scrobble(ctx, st)
	if err != nil {
		var apiErr *lastfm.APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			t.hasScrobbled = true
			t.logger.Warn("scrobble rejected", "artist", st.Artist, "title", st.Track, "code", apiErr.Code, "error", apiErr.Message)
			return true
		}
		t.logger.Warn("scrobble failed, will retry", "artist", st.Artist, "title", st.Track, "error", err)
		return false
	}

	switch {
	case res.Accepted > 0:
		t.hasScrobbled = true
		t.logger.Info("scrobbled", "artist", st.Artist, "title", st.Track)
		if t.onScrobbled != nil {
			t.onScrobbled(Play{
				Artist:    st.Artist,
				Title:     st.Track,
				Album:     st.Album,
				StartedAt: t.startTime,
				Duration:  t.duration,
			})
		}
		return true
	case res.Ignored > 0:
		t.hasScrobbled = true
		t.logger.Warn("scrobble ignored",
			"artist", st.Artist, "title", st.Track,
			"code", res.IgnoredCode, "reason", res.IgnoredMessage)
		return true
	default:
		t.logger.Warn("scrobble response unclear", "artist", st.Artist, "title", st.Track)
		return false
	}
}

func (t *Tracker) scrobbleTrack(track *playback.Track) lastfm.ScrobbleTrack {
	artist, title := track.ScrobbleNames()
	d := track.Duration
	if track.Key() == t.key && t.duration > 0 {
		d = t.duration
	}
	return lastfm.ScrobbleTrack{
		Artist:    artist,
		Track:     title,
		Album:     track.Album,
		Duration:  d,
		Timestamp: t.startTime,
	}
}
