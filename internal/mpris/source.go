// Package mpris reads the currently playing track of a target media player
// from the MPRIS interfaces on the D-Bus session bus.
package mpris

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/llehouerou/listenbridge/internal/playback"
	"github.com/llehouerou/listenbridge/internal/tags"
)

const (
	busNamePrefix   = "org.mpris.MediaPlayer2."
	objectPath      = "/org/mpris/MediaPlayer2"
	rootInterface   = "org.mpris.MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"

	// PlaceholderTitle is reported by some players between tracks.
	PlaceholderTitle = "Unknown"

	maxArtworkSize = 10 << 20
)

// DefaultIdentifiers match the Apple Music clients known to publish an MPRIS
// session.
var DefaultIdentifiers = []string{"applemusic", "appleinc.applemusic", "apple.music", "music.ui"}

// ErrUnavailable is returned when no session bus can be reached.
var ErrUnavailable = errors.New("mpris unavailable")

// Bus is the part of the session bus the source talks to.
type Bus interface {
	// ListNames returns every name currently owned on the bus.
	ListNames(ctx context.Context) ([]string, error)
	// Identity returns the player's human-readable identity.
	Identity(ctx context.Context, name string) (string, error)
	// PlayerProperties returns all properties of the player interface.
	PlayerProperties(ctx context.Context, name string) (map[string]dbus.Variant, error)
	Close() error
}

// Source implements the media source over a Bus.
type Source struct {
	bus         Bus
	identifiers []string
	logger      *slog.Logger

	readFile  func(path string) ([]byte, error)
	coverArt  func(path string) (*tags.Cover, error)
	lastNames string

	// Local artwork of the last poll, reloaded only when the track or
	// its art location changes.
	lastArt   artKey
	lastThumb []byte
	haveThumb bool
}

// New connects to the session bus. identifiers select the target player;
// empty means DefaultIdentifiers.
func New(identifiers []string, logger *slog.Logger) (*Source, error) {
	bus, err := connect()
	if err != nil {
		return nil, err
	}
	return NewWithBus(bus, identifiers, logger), nil
}

// NewWithBus creates a source over an existing bus connection.
func NewWithBus(bus Bus, identifiers []string, logger *slog.Logger) *Source {
	if len(identifiers) == 0 {
		identifiers = DefaultIdentifiers
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	lower := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			lower = append(lower, id)
		}
	}
	return &Source{
		bus:         bus,
		identifiers: lower,
		logger:      logger,
		readFile:    readLimited,
		coverArt:    tags.ExtractCoverArt,
	}
}

// Close releases the bus connection.
func (s *Source) Close() error {
	return s.bus.Close()
}

// MatchesIdentifier reports whether id contains one of identifiers,
// ignoring case. identifiers are expected in lower case.
func MatchesIdentifier(id string, identifiers []string) bool {
	id = strings.ToLower(id)
	for _, want := range identifiers {
		if want != "" && strings.Contains(id, want) {
			return true
		}
	}
	return false
}

// CurrentTrack returns the track the target player is playing. It returns
// nil without error when no target session exists, the session is not
// playing, or the title is empty or a placeholder. Bus failures are errors.
func (s *Source) CurrentTrack(ctx context.Context) (*playback.Track, error) {
	name, err := s.findSession(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}

	props, err := s.bus.PlayerProperties(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("read player properties of %s: %w", name, err)
	}

	track, art := decodeTrack(props)
	if track == nil {
		return nil, nil
	}
	s.attachArtwork(track, art)
	return track, nil
}

func (s *Source) findSession(ctx context.Context) (string, error) {
	names, err := s.bus.ListNames(ctx)
	if err != nil {
		return "", fmt.Errorf("list bus names: %w", err)
	}

	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, busNamePrefix) {
			players = append(players, strings.TrimPrefix(name, busNamePrefix))
		}
	}
	if listing := strings.Join(players, ", "); listing != s.lastNames {
		s.lastNames = listing
		s.logger.Debug("media sessions", "count", len(players), "ids", listing)
	}

	for _, id := range players {
		if MatchesIdentifier(id, s.identifiers) {
			return busNamePrefix + id, nil
		}
	}

	// Bus names are chosen by the player; fall back to the advertised
	// identity, which for Apple Music wrappers is "Apple Music".
	for _, id := range players {
		identity, err := s.bus.Identity(ctx, busNamePrefix+id)
		if err != nil {
			s.logger.Debug("read player identity", "player", id, "err", err)
			continue
		}
		if MatchesIdentifier(strings.ReplaceAll(identity, " ", ""), s.identifiers) {
			return busNamePrefix + id, nil
		}
	}
	return "", nil
}

// artwork holds the art references of a decoded track.
type artwork struct {
	artURL   string
	trackURL string
}

// artKey identifies loaded artwork. Players that reuse one temporary art
// file for every track are covered by the track key.
type artKey struct {
	art   artwork
	track playback.Key
}

// decodeTrack converts player properties into a track. It returns nil when
// the player is not playing or reports no usable title.
func decodeTrack(props map[string]dbus.Variant) (*playback.Track, artwork) {
	status, _ := variantValue(props, "PlaybackStatus").(string)
	if types.PlaybackStatus(status) != types.PlaybackStatusPlaying {
		return nil, artwork{}
	}

	meta, trackURL := decodeMetadata(props["Metadata"])
	rawTitle := strings.TrimSpace(meta.Title)
	if rawTitle == "" || meta.Title == PlaceholderTitle {
		return nil, artwork{}
	}

	rawArtist := strings.Join(meta.Artist, ", ")
	if strings.TrimSpace(rawArtist) == "" {
		rawArtist = playback.UnknownArtist
	}

	position, _ := toInt64(variantValue(props, "Position"))
	track := &playback.Track{
		Title:     playback.CleanTitle(meta.Title),
		Artist:    playback.CleanArtist(rawArtist),
		Album:     meta.Album,
		RawTitle:  meta.Title,
		RawArtist: rawArtist,
		IsPlaying: true,
		Duration:  microseconds(meta.Length),
		Position:  microseconds(types.Microseconds(position)),
	}
	return track, artwork{artURL: meta.ArtUrl, trackURL: trackURL}
}

func decodeMetadata(v dbus.Variant) (types.Metadata, string) {
	var meta types.Metadata
	fields, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return meta, ""
	}

	meta.Title, _ = variantValue(fields, "xesam:title").(string)
	meta.Album, _ = variantValue(fields, "xesam:album").(string)
	meta.ArtUrl, _ = variantValue(fields, "mpris:artUrl").(string)
	if length, ok := toInt64(variantValue(fields, "mpris:length")); ok {
		meta.Length = types.Microseconds(length)
	}
	switch artist := variantValue(fields, "xesam:artist").(type) {
	case []string:
		meta.Artist = artist
	case string:
		meta.Artist = []string{artist}
	}
	trackURL, _ := variantValue(fields, "xesam:url").(string)
	return meta, trackURL
}

// attachArtwork fills the artwork of track. Public https art is used as the
// artwork URL directly; local art is loaded as thumbnail bytes for upload.
func (s *Source) attachArtwork(track *playback.Track, art artwork) {
	if strings.HasPrefix(art.artURL, "https://") {
		track.ArtworkURL = art.artURL
		return
	}
	key := artKey{art: art, track: track.Key()}
	if !s.haveThumb || key != s.lastArt {
		s.lastThumb = s.loadThumbnail(art)
		s.lastArt = key
		s.haveThumb = true
	}
	track.Thumbnail = s.lastThumb
}

// loadThumbnail reads file:// art, falling back to the cover of a local
// track file. Failures yield nil.
func (s *Source) loadThumbnail(art artwork) []byte {
	if strings.HasPrefix(art.artURL, "file://") {
		path, err := filePath(art.artURL)
		var data []byte
		if err == nil {
			data, err = s.readFile(path)
		}
		if err == nil {
			return data
		}
		s.logger.Debug("read artwork file", "url", art.artURL, "err", err)
	}

	if !strings.HasPrefix(art.trackURL, "file://") {
		return nil
	}
	path, err := filePath(art.trackURL)
	if err != nil {
		s.logger.Debug("parse track url", "url", art.trackURL, "err", err)
		return nil
	}
	cover, err := s.coverArt(path)
	if err != nil {
		s.logger.Debug("extract cover art", "path", path, "err", err)
		return nil
	}
	if cover == nil {
		return nil
	}
	return cover.Data
}

func filePath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" || u.Path == "" {
		return "", fmt.Errorf("not a local file: %s", raw)
	}
	return u.Path, nil
}

func readLimited(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxArtworkSize {
		return nil, fmt.Errorf("%s: artwork larger than %d bytes", path, maxArtworkSize)
	}
	return os.ReadFile(path)
}

func variantValue(m map[string]dbus.Variant, key string) any {
	v, ok := m[key]
	if !ok {
		return nil
	}
	return v.Value()
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true //nolint:gosec // track lengths fit
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func microseconds(us types.Microseconds) time.Duration {
	if us < 0 {
		return 0
	}
	return time.Duration(us) * time.Microsecond
}
