// Package poller runs the single reconcile loop: it watches the media player,
// enriches new tracks, keeps the Discord presence in sync and drives
// scrobbling.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/llehouerou/listenbridge/internal/errmsg"
	"github.com/llehouerou/listenbridge/internal/playback"
	"github.com/llehouerou/listenbridge/internal/presence"
	"github.com/llehouerou/listenbridge/internal/render"
	"github.com/llehouerou/listenbridge/internal/resolver"
)

const (
	// TickInterval is the delay between two polls.
	TickInterval = 2 * time.Second
	// PausedInterval is the delay between two checks while paused.
	PausedInterval = time.Second
	// ErrorBackoff is the delay after a loop-fatal error.
	ErrorBackoff = 10 * time.Second
	// CallTimeout bounds each source and scrobble call of one iteration.
	// The resolver bounds its own requests.
	CallTimeout = 10 * time.Second

	statusTitleLimit = 30
)

// Status texts.
const (
	StatusConnected = "Connected to Discord"
	StatusPaused    = "Paused"
	StatusResuming  = "Resuming..."
	StatusStopped   = "Stopped"
	statusPlaying   = "Playing: "
)

// Source reports what the target player is playing. A nil track without
// error means nothing is playing.
type Source interface {
	CurrentTrack(ctx context.Context) (*playback.Track, error)
}

// Resolver enriches a newly observed track.
type Resolver interface {
	Resolve(ctx context.Context, track *playback.Track) resolver.Result
}

// Presence publishes the current track.
type Presence interface {
	EnsureConnected() (connected bool, err error)
	Publish(track *playback.Track, now time.Time) error
	Clear() error
	Reset()
}

// Scrobbler tracks listening progress and submits scrobbles.
type Scrobbler interface {
	Observe(track *playback.Track) bool
	NotifyNowPlaying(ctx context.Context, track *playback.Track)
	CheckAndScrobble(ctx context.Context, track *playback.Track, position time.Duration) bool
}

// Config holds the collaborators of a Poller.
type Config struct {
	Source    Source
	Resolver  Resolver
	Presence  Presence
	Scrobbler Scrobbler // optional
	// History seeds the recently played list, newest first.
	History     []string
	StartPaused bool
	Logger      *slog.Logger
}

// Poller owns the playback state. Only the loop goroutine mutates the
// current track, the history and the scrobble state; other goroutines read
// snapshots and send commands through flags.
type Poller struct {
	source   Source
	resolver Resolver
	presence Presence
	logger   *slog.Logger

	store   *playback.Store
	history *playback.History
	hub     *playback.Hub

	scrobMu   sync.RWMutex
	scrobbler Scrobbler

	force atomic.Bool

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// Loop state.
	last          *playback.Track
	wasPaused     bool
	presenceStale bool
	discordDown   bool
	sourceFailing bool
}

// New creates a stopped poller.
func New(cfg Config) *Poller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Poller{
		source:    cfg.Source,
		resolver:  cfg.Resolver,
		presence:  cfg.Presence,
		scrobbler: cfg.Scrobbler,
		logger:    logger,
		store:     playback.NewStore(),
		history:   playback.NewHistory(cfg.History),
		hub:       playback.NewHub(),
	}
	p.store.SetPaused(cfg.StartPaused)
	return p
}

// Start runs the loop until ctx is cancelled or Stop is called. A loop that
// is already running is stopped first.
func (p *Poller) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	go p.run(ctx, done)
}

// Stop cancels the loop and waits for it to exit.
func (p *Poller) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.stopLocked()
}

// Done returns a channel closed when the running loop exits, or nil if no
// loop was started.
func (p *Poller) Done() <-chan struct{} {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.done
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
}

// Close stops the loop and ends every subscription.
func (p *Poller) Close() {
	p.Stop()
	p.hub.Close()
}

// Pause stops polling. The presence is cleared on the loop's next check.
func (p *Poller) Pause() {
	p.store.SetPaused(true)
	p.hub.PublishStatus(StatusPaused, false)
}

// Resume restarts polling and republishes the current track.
func (p *Poller) Resume() {
	p.store.SetPaused(false)
	p.force.Store(true)
	p.hub.PublishStatus(StatusResuming, false)
}

// TogglePause pauses a running poller or resumes a paused one.
func (p *Poller) TogglePause() {
	if p.store.IsPaused() {
		p.Resume()
		return
	}
	p.Pause()
}

// ForceRefresh republishes the current track on the next tick.
func (p *Poller) ForceRefresh() {
	p.force.Store(true)
}

// IsPaused reports whether polling is paused.
func (p *Poller) IsPaused() bool {
	return p.store.IsPaused()
}

// Snapshot returns a copy of the playback state.
func (p *Poller) Snapshot() playback.Snapshot {
	return p.store.Snapshot()
}

// History returns the recently played entries, newest first.
func (p *Poller) History() []string {
	return p.history.Entries()
}

// Subscribe registers an observer of track, status and history changes.
func (p *Poller) Subscribe() *playback.Subscription {
	return p.hub.Subscribe()
}

// Unsubscribe removes an observer.
func (p *Poller) Unsubscribe(sub *playback.Subscription) {
	p.hub.Unsubscribe(sub)
}

// SetScrobbler replaces the scrobbler. nil disables scrobbling.
func (p *Poller) SetScrobbler(s Scrobbler) {
	p.scrobMu.Lock()
	defer p.scrobMu.Unlock()
	p.scrobbler = s
}

func (p *Poller) currentScrobbler() Scrobbler {
	p.scrobMu.RLock()
	defer p.scrobMu.RUnlock()
	return p.scrobbler
}

// panicError is a panic recovered from one iteration.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("unexpected failure: %v", e.value)
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	p.logger.Info("poll loop started")
	defer p.logger.Info("poll loop stopped")

	for ctx.Err() == nil {
		wait, err := p.safeTick(ctx)
		if err != nil && ctx.Err() == nil {
			wait = p.handleError(err)
		}
		if !sleep(ctx, wait) {
			return
		}
	}
}

func (p *Poller) handleError(err error) time.Duration {
	var pe *panicError
	if errors.As(err, &pe) {
		p.logger.Error("poll loop failure", "error", err)
		p.hub.PublishStatus(errmsg.Status(err), true)
		p.presence.Reset()
		p.presenceStale = true
		return ErrorBackoff
	}

	if !p.sourceFailing {
		p.sourceFailing = true
		p.logger.Warn("media source failed", "error", err)
		p.hub.PublishStatus(errmsg.Status(err), true)
	} else {
		p.logger.Debug("media source still failing", "error", err)
	}
	return TickInterval
}

func (p *Poller) safeTick(ctx context.Context) (wait time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Debug("recovered panic", "stack", string(debug.Stack()))
			err = &panicError{value: r}
		}
	}()
	return p.tick(ctx)
}

func (p *Poller) tick(ctx context.Context) (time.Duration, error) {
	p.ensureConnected()

	if p.store.IsPaused() {
		if !p.wasPaused {
			p.wasPaused = true
			if err := p.presence.Clear(); err != nil {
				p.logger.Warn("clear presence", "error", err)
			}
		}
		return PausedInterval, nil
	}
	p.wasPaused = false

	callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
	track, err := p.source.CurrentTrack(callCtx)
	cancel()
	if err != nil {
		return TickInterval, fmt.Errorf("%s: %w", errmsg.OpMediaQuery, err)
	}
	if p.sourceFailing {
		p.sourceFailing = false
		p.logger.Info("media source recovered")
	}

	changed := !playback.SameIdentity(p.last, track)
	if track != nil && p.force.CompareAndSwap(true, false) {
		changed = true
	}

	now := time.Now()
	switch {
	case changed && track == nil:
		p.stopped(now)
	case changed:
		p.trackStarted(ctx, track)
	case track != nil:
		p.store.UpdateProgress(track.Position, track.Duration, now)
		if p.presenceStale {
			p.publish(p.store.Current(), now)
		}
	}
	p.last = track

	if track != nil && track.IsPlaying {
		if s := p.currentScrobbler(); s != nil {
			callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
			s.CheckAndScrobble(callCtx, p.store.Current(), track.Position)
			cancel()
		}
	}
	return TickInterval, nil
}

func (p *Poller) ensureConnected() {
	connected, err := p.presence.EnsureConnected()
	switch {
	case errors.Is(err, presence.ErrDisabled):
	case err != nil:
		if !p.discordDown {
			p.discordDown = true
			p.logger.Info("discord unavailable", "error", err)
		}
	case connected:
		p.discordDown = false
		p.presenceStale = true
		p.hub.PublishStatus(StatusConnected, false)
	}
}

func (p *Poller) stopped(now time.Time) {
	if err := p.presence.Clear(); err != nil {
		p.logger.Warn("clear presence", "error", err)
	}
	p.presenceStale = false
	prev := p.store.Current()
	p.store.SetTrack(nil, now)
	p.hub.PublishTrack(prev, nil)
	p.hub.PublishStatus(StatusStopped, false)
	p.logger.Info("playback stopped")
}

func (p *Poller) trackStarted(ctx context.Context, track *playback.Track) {
	if p.history.Push(track.HistoryEntry()) {
		p.hub.PublishHistory(p.history.Entries())
	}

	res := p.resolver.Resolve(ctx, track)
	res.Apply(track)
	// The thumbnail is only needed for upload.
	track.Thumbnail = nil

	// Resolving can take seconds; stamp the record when it lands.
	now := time.Now()
	prev := p.store.Current()
	p.store.SetTrack(track, now)
	p.hub.PublishTrack(prev, track)
	p.logger.Info("track changed", "artist", track.Artist, "title", track.Title, "album", track.Album)

	p.publish(track, now)
	p.hub.PublishStatus(statusPlaying+render.Truncate(track.Title, statusTitleLimit), false)

	if s := p.currentScrobbler(); s != nil {
		s.Observe(track)
		if track.IsPlaying {
			callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
			s.NotifyNowPlaying(callCtx, track)
			cancel()
		}
	}
}

func (p *Poller) publish(track *playback.Track, now time.Time) {
	if track == nil {
		return
	}
	err := p.presence.Publish(track, now)
	switch {
	case errors.Is(err, presence.ErrDisabled):
		p.presenceStale = false
	case err != nil:
		p.presenceStale = true
		p.logger.Debug("publish presence", "error", err)
	default:
		p.presenceStale = false
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
