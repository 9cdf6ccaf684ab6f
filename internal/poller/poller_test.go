package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/listenbridge/internal/playback"
	"github.com/llehouerou/listenbridge/internal/presence"
	"github.com/llehouerou/listenbridge/internal/resolver"
)

type fakeSource struct {
	mu    sync.Mutex
	track *playback.Track
	err   error
	calls int
}

func (f *fakeSource) CurrentTrack(context.Context) (*playback.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.track.Clone(), nil
}

func (f *fakeSource) set(t *playback.Track, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track, f.err = t, err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeResolver struct {
	mu      sync.Mutex
	calls   int
	panicky bool
}

func (f *fakeResolver) Resolve(_ context.Context, t *playback.Track) resolver.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicky {
		panic("resolver exploded")
	}
	return resolver.Result{
		ArtworkURL:     "https://art/" + t.Title,
		ExternalURL:    "https://music.apple.com/" + t.Title,
		ScrobbleArtist: t.Artist,
		ScrobbleTitle:  t.Title,
	}
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePresence struct {
	mu        sync.Mutex
	connected bool
	connErr   error
	connects  int
	published []*playback.Track
	clears    int
	resets    int
}

func (f *fakePresence) EnsureConnected() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connErr != nil {
		return false, f.connErr
	}
	if f.connected {
		return false, nil
	}
	f.connected = true
	f.connects++
	return true, nil
}

func (f *fakePresence) Publish(t *playback.Track, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return errors.New("not connected")
	}
	f.published = append(f.published, t.Clone())
	return nil
}

func (f *fakePresence) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func (f *fakePresence) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.connected = false
}

func (f *fakePresence) disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakePresence) counts() (published, clears, resets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published), f.clears, f.resets
}

type check struct {
	key      playback.Key
	position time.Duration
}

type fakeScrobbler struct {
	mu         sync.Mutex
	observed   []playback.Key
	nowPlaying int
	checks     []check
}

func (f *fakeScrobbler) Observe(t *playback.Track) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed = append(f.observed, t.Key())
	return true
}

func (f *fakeScrobbler) NotifyNowPlaying(context.Context, *playback.Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nowPlaying++
}

func (f *fakeScrobbler) CheckAndScrobble(_ context.Context, t *playback.Track, pos time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, check{key: t.Key(), position: pos})
	return false
}

func (f *fakeScrobbler) snapshot() (observed []playback.Key, nowPlaying int, checks []check) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]playback.Key(nil), f.observed...), f.nowPlaying, append([]check(nil), f.checks...)
}

type harness struct {
	source    *fakeSource
	resolver  *fakeResolver
	presence  *fakePresence
	scrobbler *fakeScrobbler
	poller    *Poller
	sub       *playback.Subscription
}

func newHarness(cfg Config) *harness {
	h := &harness{
		source:    &fakeSource{},
		resolver:  &fakeResolver{},
		presence:  &fakePresence{},
		scrobbler: &fakeScrobbler{},
	}
	cfg.Source = h.source
	cfg.Resolver = h.resolver
	cfg.Presence = h.presence
	cfg.Scrobbler = h.scrobbler
	h.poller = New(cfg)
	h.sub = h.poller.Subscribe()
	return h
}

func (h *harness) statuses() []string {
	var out []string
	for {
		select {
		case e := <-h.sub.StatusChanged:
			out = append(out, e.Text)
		default:
			return out
		}
	}
}

func (h *harness) trackEvents() []playback.TrackChange {
	var out []playback.TrackChange
	for {
		select {
		case e := <-h.sub.TrackChanged:
			out = append(out, e)
		default:
			return out
		}
	}
}

func playing(artist, title string, pos time.Duration) *playback.Track {
	return &playback.Track{
		Title:     playback.CleanTitle(title),
		Artist:    playback.CleanArtist(artist),
		RawTitle:  title,
		RawArtist: artist,
		Album:     "Album",
		IsPlaying: true,
		Duration:  200 * time.Second,
		Position:  pos,
		Thumbnail: []byte("thumb"),
	}
}

// advance lets the loop run for d and waits until it is idle.
func advance(d time.Duration) {
	time.Sleep(d)
	synctest.Wait()
}

func TestPoller_TrackLifecycle(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{})
		h.source.set(playing("Artist", "Song", 10*time.Second), nil)

		h.poller.Start(t.Context())
		defer h.poller.Stop()
		advance(time.Second)

		assert.Equal(t, []string{StatusConnected, "Playing: Song"}, h.statuses())
		assert.Equal(t, 1, h.resolver.callCount())
		published, _, _ := h.presence.counts()
		assert.Equal(t, 1, published)
		assert.Equal(t, []string{"Artist — Song"}, h.poller.History())

		events := h.trackEvents()
		require.Len(t, events, 1)
		assert.Nil(t, events[0].Previous)
		require.NotNil(t, events[0].Current)
		assert.Equal(t, "https://art/Song", events[0].Current.ArtworkURL)
		assert.Nil(t, events[0].Current.Thumbnail)

		snap := h.poller.Snapshot()
		require.NotNil(t, snap.Track)
		assert.Equal(t, "https://music.apple.com/Song", snap.Track.ExternalURL)

		observed, nowPlaying, checks := h.scrobbler.snapshot()
		assert.Len(t, observed, 1)
		assert.Equal(t, 1, nowPlaying)
		assert.Len(t, checks, 1)

		// Same track: only progress moves.
		h.source.set(playing("Artist", "Song", 12*time.Second), nil)
		advance(2 * time.Second)

		assert.Equal(t, 1, h.resolver.callCount())
		published, _, _ = h.presence.counts()
		assert.Equal(t, 1, published)
		assert.Empty(t, h.statuses())
		assert.Equal(t, 12*time.Second, h.poller.Snapshot().Track.Position)
		_, _, checks = h.scrobbler.snapshot()
		require.Len(t, checks, 2)
		assert.Equal(t, 12*time.Second, checks[1].position)

		// Nothing playing.
		h.source.set(nil, nil)
		advance(2 * time.Second)

		assert.Equal(t, []string{StatusStopped}, h.statuses())
		_, clears, _ := h.presence.counts()
		assert.Equal(t, 1, clears)
		events = h.trackEvents()
		require.Len(t, events, 1)
		assert.NotNil(t, events[0].Previous)
		assert.Nil(t, events[0].Current)
		assert.Nil(t, h.poller.Snapshot().Track)
		_, _, checks = h.scrobbler.snapshot()
		assert.Len(t, checks, 2, "no scrobble check without a track")
	})
}

func TestPoller_TrackTransition(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{})
		h.source.set(playing("A", "One", 0), nil)
		h.poller.Start(t.Context())
		defer h.poller.Stop()
		advance(time.Second)

		h.source.set(playing("B", "Two", 0), nil)
		advance(2 * time.Second)

		assert.Equal(t, []string{"B — Two", "A — One"}, h.poller.History())
		observed, nowPlaying, _ := h.scrobbler.snapshot()
		assert.Equal(t, []playback.Key{{Artist: "A", Title: "One"}, {Artist: "B", Title: "Two"}}, observed)
		assert.Equal(t, 2, nowPlaying)

		events := h.trackEvents()
		require.Len(t, events, 2)
		assert.Equal(t, "One", events[1].Previous.Title)
		assert.Equal(t, "Two", events[1].Current.Title)
	})
}

func TestPoller_CosmeticRawChangeIsSameTrack(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{})
		h.source.set(playing("Artist — Album", "Song - Single", 0), nil)
		h.poller.Start(t.Context())
		defer h.poller.Stop()
		advance(time.Second)

		h.source.set(playing("Artist", "Song", 5*time.Second), nil)
		advance(2 * time.Second)

		assert.Equal(t, []string{"Artist — Song"}, h.poller.History())
		assert.Equal(t, 1, h.resolver.callCount())
		observed, _, checks := h.scrobbler.snapshot()
		assert.Len(t, observed, 1)
		require.Len(t, checks, 2)
		want := playback.Key{Artist: "Artist — Album", Title: "Song - Single"}
		assert.Equal(t, want, checks[1].key, "checks use the tracked record")
	})
}

func TestPoller_PauseAndResume(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{})
		h.source.set(playing("Artist", "Song", 0), nil)
		h.poller.Start(t.Context())
		defer h.poller.Stop()
		advance(time.Second)
		h.statuses()

		h.poller.Pause()
		assert.True(t, h.poller.IsPaused())
		assert.Equal(t, []string{StatusPaused}, h.statuses())

		advance(2 * time.Second)
		calls := h.source.callCount()
		_, clears, _ := h.presence.counts()
		assert.Equal(t, 1, clears)

		advance(10 * time.Second)
		assert.Equal(t, calls, h.source.callCount(), "no polling while paused")
		_, clears, _ = h.presence.counts()
		assert.Equal(t, 1, clears, "presence cleared once per pause")
		_, _, checks := h.scrobbler.snapshot()
		assert.Len(t, checks, 1)

		h.poller.Resume()
		assert.Equal(t, []string{StatusResuming}, h.statuses())
		advance(time.Second)

		assert.False(t, h.poller.IsPaused())
		published, _, _ := h.presence.counts()
		assert.Equal(t, 2, published, "resume republishes")
		assert.Equal(t, []string{"Playing: Song"}, h.statuses())
		assert.Equal(t, []string{"Artist — Song"}, h.poller.History())
		observed, _, _ := h.scrobbler.snapshot()
		assert.Len(t, observed, 2)
	})
}

func TestPoller_TogglePause(t *testing.T) {
	h := newHarness(Config{})
	h.poller.TogglePause()
	assert.True(t, h.poller.IsPaused())
	h.poller.TogglePause()
	assert.False(t, h.poller.IsPaused())
	assert.Equal(t, []string{StatusPaused, StatusResuming}, h.statuses())
}

func TestPoller_StartPaused(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{StartPaused: true})
		h.source.set(playing("Artist", "Song", 0), nil)
		h.poller.Start(t.Context())
		defer h.poller.Stop()
		advance(5 * time.Second)

		assert.Equal(t, 0, h.source.callCount())
	})
}

func TestPoller_ForceRefresh(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{})
		h.poller.ForceRefresh()
		h.poller.Start(t.Context())
		defer h.poller.Stop()
		advance(3 * time.Second)

		// The flag waits for a track.
		published, _, _ := h.presence.counts()
		assert.Equal(t, 0, published)

		h.source.set(playing("Artist", "Song", 0), nil)
		advance(2 * time.Second)
		h.poller.ForceRefresh()
		advance(2 * time.Second)

		published, _, _ = h.presence.counts()
		assert.Equal(t, 2, published)
		advance(2 * time.Second)
		published, _, _ = h.presence.counts()
		assert.Equal(t, 2, published, "refresh applies once")
	})
}

func TestPoller_SourceError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{})
		h.source.set(playing("Artist", "Song", 0), nil)
		h.poller.Start(t.Context())
		defer h.poller.Stop()
		advance(time.Second)
		h.statuses()

		h.source.set(nil, errors.New("bus gone"))
		advance(4 * time.Second)

		assert.Equal(t, []string{"Error: query media player: bus gone"}, h.statuses())
		assert.NotNil(t, h.poller.Snapshot().Track, "an error is not a stop")
		_, clears, resets := h.presence.counts()
		assert.Equal(t, 0, clears)
		assert.Equal(t, 0, resets)
		_, _, checks := h.scrobbler.snapshot()
		assert.Len(t, checks, 1)

		h.source.set(playing("Artist", "Song", 6*time.Second), nil)
		advance(2 * time.Second)
		assert.Empty(t, h.statuses())
		_, _, checks = h.scrobbler.snapshot()
		assert.Len(t, checks, 2)
	})
}

func TestPoller_PanicBacksOff(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{})
		h.resolver.panicky = true
		h.source.set(playing("Artist", "Song", 0), nil)
		h.poller.Start(t.Context())
		defer h.poller.Stop()
		advance(time.Second)

		statuses := h.statuses()
		require.NotEmpty(t, statuses)
		assert.Equal(t, "Error: unexpected failure: resolver exploded", statuses[len(statuses)-1])
		_, _, resets := h.presence.counts()
		assert.Equal(t, 1, resets)
		assert.Equal(t, 1, h.source.callCount())

		advance(8 * time.Second)
		assert.Equal(t, 1, h.source.callCount(), "backing off")

		h.resolver.mu.Lock()
		h.resolver.panicky = false
		h.resolver.mu.Unlock()
		advance(2 * time.Second)

		assert.Equal(t, 2, h.source.callCount())
		assert.Contains(t, h.statuses(), "Playing: Song")
		h.presence.mu.Lock()
		connects := h.presence.connects
		h.presence.mu.Unlock()
		assert.Equal(t, 2, connects, "reconnected after the failure")
	})
}

func TestPoller_ReconnectRepublishes(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{})
		h.source.set(playing("Artist", "Song", 0), nil)
		h.poller.Start(t.Context())
		defer h.poller.Stop()
		advance(time.Second)
		h.statuses()

		h.presence.disconnect()
		advance(2 * time.Second)

		assert.Equal(t, []string{StatusConnected}, h.statuses())
		published, _, _ := h.presence.counts()
		assert.Equal(t, 2, published)
		assert.Equal(t, 1, h.resolver.callCount())
	})
}

func TestPoller_DiscordUnavailable(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{})
		h.presence.connErr = errors.New("no socket")
		h.source.set(playing("Artist", "Song", 0), nil)
		h.poller.Start(t.Context())
		defer h.poller.Stop()
		advance(3 * time.Second)

		assert.Equal(t, []string{"Playing: Song"}, h.statuses())
		_, nowPlaying, checks := h.scrobbler.snapshot()
		assert.Equal(t, 1, nowPlaying, "scrobbling works without Discord")
		assert.Len(t, checks, 2)
	})
}

func TestPoller_PresenceDisabled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{})
		h.presence.connErr = presence.ErrDisabled
		h.source.set(playing("Artist", "Song", 0), nil)
		h.poller.Start(t.Context())
		defer h.poller.Stop()
		advance(time.Second)

		assert.Equal(t, []string{"Playing: Song"}, h.statuses())
	})
}

func TestPoller_SetScrobbler(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{})
		h.poller.SetScrobbler(nil)
		h.source.set(playing("Artist", "Song", 0), nil)
		h.poller.Start(t.Context())
		defer h.poller.Stop()
		advance(time.Second)

		observed, _, checks := h.scrobbler.snapshot()
		assert.Empty(t, observed)
		assert.Empty(t, checks)

		next := &fakeScrobbler{}
		h.poller.SetScrobbler(next)
		advance(2 * time.Second)

		_, _, checks = next.snapshot()
		assert.Len(t, checks, 1)
	})
}

func TestPoller_StartReplacesLoop(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{})
		h.poller.Start(t.Context())
		h.poller.Start(t.Context())
		defer h.poller.Stop()
		advance(9 * time.Second)

		// One loop ticks at 0, 2, 4, 6 and 8s. The replaced loop may have
		// managed its first tick before being cancelled.
		calls := h.source.callCount()
		assert.GreaterOrEqual(t, calls, 5)
		assert.LessOrEqual(t, calls, 6)
	})
}

func TestPoller_StopAndCancel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{})
		assert.Nil(t, h.poller.Done())

		ctx, cancel := context.WithCancel(t.Context())
		h.poller.Start(ctx)
		done := h.poller.Done()
		advance(time.Second)

		cancel()
		synctest.Wait()
		select {
		case <-done:
		default:
			t.Fatal("loop still running after cancel")
		}

		h.poller.Start(t.Context())
		advance(time.Second)
		h.poller.Close()
		calls := h.source.callCount()
		advance(10 * time.Second)
		assert.Equal(t, calls, h.source.callCount())

		select {
		case <-h.sub.Done:
		default:
			t.Fatal("subscription not closed")
		}
	})
}

func TestPoller_SeedHistory(t *testing.T) {
	h := newHarness(Config{History: []string{"B — Two", "A — One"}})
	assert.Equal(t, []string{"B — Two", "A — One"}, h.poller.History())
}

func TestPoller_RefreshesAreMarked(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(Config{})
		h.source.set(playing("Artist", "Song", 0), nil)
		h.poller.Start(t.Context())
		defer h.poller.Stop()
		advance(time.Second)

		h.poller.ForceRefresh()
		advance(2 * time.Second)
		h.poller.Pause()
		advance(2 * time.Second)
		h.poller.Resume()
		advance(2 * time.Second)

		events := h.trackEvents()
		require.Len(t, events, 3)
		assert.False(t, events[0].IsRefresh(), "first observation is a new track")
		assert.True(t, events[1].IsRefresh(), "forced refresh")
		assert.True(t, events[2].IsRefresh(), "resume")
	})
}
