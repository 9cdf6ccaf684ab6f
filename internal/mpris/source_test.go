package mpris

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/listenbridge/internal/playback"
	"github.com/llehouerou/listenbridge/internal/tags"
)

type fakeBus struct {
	names      []string
	listErr    error
	identities map[string]string
	props      map[string]map[string]dbus.Variant
	propsErr   error
	closed     bool
}

func (b *fakeBus) ListNames(context.Context) ([]string, error) {
	return b.names, b.listErr
}

func (b *fakeBus) Identity(_ context.Context, name string) (string, error) {
	id, ok := b.identities[name]
	if !ok {
		return "", errors.New("no such object")
	}
	return id, nil
}

func (b *fakeBus) PlayerProperties(_ context.Context, name string) (map[string]dbus.Variant, error) {
	if b.propsErr != nil {
		return nil, b.propsErr
	}
	return b.props[name], nil
}

func (b *fakeBus) Close() error {
	b.closed = true
	return nil
}

func playerProps(status string, meta map[string]dbus.Variant, position int64) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant(status),
		"Metadata":       dbus.MakeVariant(meta),
		"Position":       dbus.MakeVariant(position),
	}
}

func songMeta() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"xesam:title":  dbus.MakeVariant("Song - Single"),
		"xesam:artist": dbus.MakeVariant([]string{"Artist — Album"}),
		"xesam:album":  dbus.MakeVariant("Album"),
		"mpris:length": dbus.MakeVariant(int64(200_000_000)),
	}
}

const appleMusic = busNamePrefix + "AppleMusic.instance42"

func TestMatchesIdentifier(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"AppleMusic", true},
		{"appleinc.applemusic_nzyj5cx40ttqa!app", true},
		{"cider.apple.music", true},
		{"Microsoft.Music.UI", true},
		{"spotify", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := MatchesIdentifier(tt.id, DefaultIdentifiers); got != tt.want {
			t.Errorf("MatchesIdentifier(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestDecodeTrack(t *testing.T) {
	track, art := decodeTrack(playerProps("Playing", songMeta(), 12_500_000))
	require.NotNil(t, track)

	assert.Equal(t, "Song", track.Title)
	assert.Equal(t, "Artist", track.Artist)
	assert.Equal(t, "Song - Single", track.RawTitle)
	assert.Equal(t, "Artist — Album", track.RawArtist)
	assert.Equal(t, "Album", track.Album)
	assert.True(t, track.IsPlaying)
	assert.Equal(t, 200*time.Second, track.Duration)
	assert.Equal(t, 12500*time.Millisecond, track.Position)
	assert.Empty(t, art.artURL)
}

func TestDecodeTrack_NoTrack(t *testing.T) {
	placeholder := songMeta()
	placeholder["xesam:title"] = dbus.MakeVariant(PlaceholderTitle)
	blank := songMeta()
	blank["xesam:title"] = dbus.MakeVariant("   ")

	tests := []struct {
		name  string
		props map[string]dbus.Variant
	}{
		{"paused", playerProps("Paused", songMeta(), 0)},
		{"stopped", playerProps("Stopped", songMeta(), 0)},
		{"placeholder title", playerProps("Playing", placeholder, 0)},
		{"blank title", playerProps("Playing", blank, 0)},
		{"no metadata", map[string]dbus.Variant{"PlaybackStatus": dbus.MakeVariant("Playing")}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track, _ := decodeTrack(tt.props)
			assert.Nil(t, track)
		})
	}
}

func TestDecodeTrack_LooseTypes(t *testing.T) {
	meta := map[string]dbus.Variant{
		"xesam:title":  dbus.MakeVariant("Song"),
		"xesam:artist": dbus.MakeVariant("Solo"),
		"mpris:length": dbus.MakeVariant(uint64(90_000_000)),
	}
	track, _ := decodeTrack(playerProps("Playing", meta, -5))
	require.NotNil(t, track)

	assert.Equal(t, "Solo", track.RawArtist)
	assert.Equal(t, 90*time.Second, track.Duration)
	assert.Equal(t, time.Duration(0), track.Position)
}

func TestDecodeTrack_MissingArtist(t *testing.T) {
	meta := map[string]dbus.Variant{"xesam:title": dbus.MakeVariant("Song")}
	track, _ := decodeTrack(playerProps("Playing", meta, 0))
	require.NotNil(t, track)

	assert.Equal(t, "Unknown", track.RawArtist)
	assert.Equal(t, "Unknown", track.Artist)
	assert.Equal(t, time.Duration(0), track.Duration)
}

func TestDecodeTrack_JoinsArtists(t *testing.T) {
	meta := songMeta()
	meta["xesam:artist"] = dbus.MakeVariant([]string{"A", "B"})
	track, _ := decodeTrack(playerProps("Playing", meta, 0))
	require.NotNil(t, track)

	assert.Equal(t, "A, B", track.RawArtist)
}

func TestSource_CurrentTrack(t *testing.T) {
	bus := &fakeBus{
		names: []string{"org.freedesktop.DBus", busNamePrefix + "spotify", appleMusic},
		props: map[string]map[string]dbus.Variant{
			busNamePrefix + "spotify": playerProps("Playing", map[string]dbus.Variant{
				"xesam:title": dbus.MakeVariant("Other"),
			}, 0),
			appleMusic: playerProps("Playing", songMeta(), 0),
		},
	}
	s := NewWithBus(bus, nil, nil)

	track, err := s.CurrentTrack(t.Context())
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, "Song", track.Title)

	require.NoError(t, s.Close())
	assert.True(t, bus.closed)
}

func TestSource_CurrentTrack_NoTargetSession(t *testing.T) {
	bus := &fakeBus{
		names: []string{busNamePrefix + "spotify", busNamePrefix + "vlc"},
		identities: map[string]string{
			busNamePrefix + "spotify": "Spotify",
		},
	}
	s := NewWithBus(bus, nil, nil)

	track, err := s.CurrentTrack(t.Context())
	require.NoError(t, err)
	assert.Nil(t, track)
}

func TestSource_CurrentTrack_MatchesIdentity(t *testing.T) {
	name := busNamePrefix + "chromium.instance7"
	bus := &fakeBus{
		names:      []string{name},
		identities: map[string]string{name: "Apple Music"},
		props:      map[string]map[string]dbus.Variant{name: playerProps("Playing", songMeta(), 0)},
	}
	s := NewWithBus(bus, nil, nil)

	track, err := s.CurrentTrack(t.Context())
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, "Song", track.Title)
}

func TestSource_CurrentTrack_CustomIdentifiers(t *testing.T) {
	name := busNamePrefix + "spotify"
	bus := &fakeBus{
		names: []string{name},
		props: map[string]map[string]dbus.Variant{name: playerProps("Playing", songMeta(), 0)},
	}
	s := NewWithBus(bus, []string{" Spotify "}, nil)

	track, err := s.CurrentTrack(t.Context())
	require.NoError(t, err)
	assert.NotNil(t, track)
}

func TestSource_CurrentTrack_Errors(t *testing.T) {
	t.Run("list names", func(t *testing.T) {
		s := NewWithBus(&fakeBus{listErr: errors.New("bus gone")}, nil, nil)
		_, err := s.CurrentTrack(t.Context())
		require.Error(t, err)
	})
	t.Run("player properties", func(t *testing.T) {
		s := NewWithBus(&fakeBus{
			names:    []string{appleMusic},
			propsErr: errors.New("timeout"),
		}, nil, nil)
		_, err := s.CurrentTrack(t.Context())
		require.Error(t, err)
	})
}

func sourceWith(meta map[string]dbus.Variant) *Source {
	return NewWithBus(&fakeBus{
		names: []string{appleMusic},
		props: map[string]map[string]dbus.Variant{appleMusic: playerProps("Playing", meta, 0)},
	}, nil, nil)
}

func TestSource_Artwork_PublicURL(t *testing.T) {
	meta := songMeta()
	meta["mpris:artUrl"] = dbus.MakeVariant("https://is1-ssl.mzstatic.com/image/100x100bb.jpg")
	s := sourceWith(meta)

	track, err := s.CurrentTrack(t.Context())
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, "https://is1-ssl.mzstatic.com/image/100x100bb.jpg", track.ArtworkURL)
	assert.Nil(t, track.Thumbnail)
}

func TestSource_Artwork_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "art.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o600))

	meta := songMeta()
	meta["mpris:artUrl"] = dbus.MakeVariant("file://" + path)
	s := sourceWith(meta)

	track, err := s.CurrentTrack(t.Context())
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, []byte("jpeg"), track.Thumbnail)
	assert.Empty(t, track.ArtworkURL)
}

func TestSource_Artwork_TrackFile(t *testing.T) {
	meta := songMeta()
	meta["mpris:artUrl"] = dbus.MakeVariant("file:///missing/art.jpg")
	meta["xesam:url"] = dbus.MakeVariant("file:///music/album/01%20song.flac")
	s := sourceWith(meta)

	var gotPath string
	s.coverArt = func(path string) (*tags.Cover, error) {
		gotPath = path
		return &tags.Cover{Data: []byte("embedded")}, nil
	}

	track, err := s.CurrentTrack(t.Context())
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, "/music/album/01 song.flac", gotPath)
	assert.Equal(t, []byte("embedded"), track.Thumbnail)
}

func TestSource_Artwork_RemoteTrackIgnored(t *testing.T) {
	meta := songMeta()
	meta["xesam:url"] = dbus.MakeVariant("https://music.apple.com/track/1")
	s := sourceWith(meta)
	s.coverArt = func(string) (*tags.Cover, error) {
		t.Error("cover art lookup for remote track")
		return nil, nil
	}

	track, err := s.CurrentTrack(t.Context())
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Nil(t, track.Thumbnail)
}

func TestSource_Artwork_CoverErrorIsNotFatal(t *testing.T) {
	meta := songMeta()
	meta["xesam:url"] = dbus.MakeVariant("file:///music/song.mp3")
	s := sourceWith(meta)
	s.coverArt = func(string) (*tags.Cover, error) {
		return nil, errors.New("corrupt file")
	}

	track, err := s.CurrentTrack(t.Context())
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Nil(t, track.Thumbnail)
}

func TestSource_Artwork_LoadedOncePerTrack(t *testing.T) {
	meta := songMeta()
	meta["mpris:artUrl"] = dbus.MakeVariant("file:///tmp/cover.png")
	bus := &fakeBus{
		names: []string{appleMusic},
		props: map[string]map[string]dbus.Variant{appleMusic: playerProps("Playing", meta, 0)},
	}
	s := NewWithBus(bus, nil, nil)
	reads := 0
	s.readFile = func(string) ([]byte, error) {
		reads++
		return []byte{byte(reads)}, nil
	}

	poll := func() *playback.Track {
		t.Helper()
		track, err := s.CurrentTrack(t.Context())
		require.NoError(t, err)
		require.NotNil(t, track)
		return track
	}

	for range 3 {
		assert.Equal(t, []byte{1}, poll().Thumbnail)
	}
	assert.Equal(t, 1, reads, "unchanged art is not read again")

	// Same temporary art file, new track.
	next := songMeta()
	next["xesam:title"] = dbus.MakeVariant("Other Song")
	next["mpris:artUrl"] = dbus.MakeVariant("file:///tmp/cover.png")
	bus.props[appleMusic] = playerProps("Playing", next, 0)
	assert.Equal(t, []byte{2}, poll().Thumbnail)

	next["mpris:artUrl"] = dbus.MakeVariant("file:///tmp/cover2.png")
	bus.props[appleMusic] = playerProps("Playing", next, 0)
	assert.Equal(t, []byte{3}, poll().Thumbnail)
	assert.Equal(t, 3, reads)
}

func TestSource_Artwork_FailureNotRetriedEveryPoll(t *testing.T) {
	meta := songMeta()
	meta["xesam:url"] = dbus.MakeVariant("file:///music/song.mp3")
	s := sourceWith(meta)
	lookups := 0
	s.coverArt = func(string) (*tags.Cover, error) {
		lookups++
		return nil, errors.New("corrupt file")
	}

	for range 3 {
		track, err := s.CurrentTrack(t.Context())
		require.NoError(t, err)
		assert.Nil(t, track.Thumbnail)
	}
	assert.Equal(t, 1, lookups)
}
