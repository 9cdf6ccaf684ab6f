package playback

import (
	"time"
)

// Track is a snapshot of one observation of the player's current track.
// Title and Artist are cleaned; RawTitle and RawArtist are what the player
// reported and key the enrichment cache and scrobble tracking.
type Track struct {
	Title     string
	Artist    string
	Album     string
	RawTitle  string
	RawArtist string
	IsPlaying bool
	Duration  time.Duration
	Position  time.Duration

	// Thumbnail holds raw artwork bytes reported by the player, if any.
	Thumbnail []byte

	// Filled by the resolver.
	ArtworkURL     string
	ExternalURL    string
	ScrobbleArtist string
	ScrobbleTitle  string
}

// Identity is the cleaned (title, artist) pair used for change detection.
type Identity struct {
	Title  string
	Artist string
}

// Key is the raw (artist, title) pair that keys scrobble tracking.
type Key struct {
	Artist string
	Title  string
}

// String returns the key as "artist|title".
func (k Key) String() string {
	return k.Artist + "|" + k.Title
}

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool {
	return k.Artist == "" && k.Title == ""
}

// Identity returns the cleaned identity of the track.
func (t *Track) Identity() Identity {
	return Identity{Title: t.Title, Artist: t.Artist}
}

// Key returns the raw scrobble-tracking key of the track.
func (t *Track) Key() Key {
	return Key{Artist: t.RawArtist, Title: t.RawTitle}
}

// CacheKey returns the enrichment cache key for the track.
func (t *Track) CacheKey() string {
	return CacheKey(t.RawArtist, t.RawTitle)
}

// HistoryEntry formats the track the way it appears in History.
func (t *Track) HistoryEntry() string {
	return t.Artist + " — " + t.Title
}

// ScrobbleNames returns the artist/title to report to the scrobble service,
// falling back to the raw strings when the resolver found nothing.
func (t *Track) ScrobbleNames() (artist, title string) {
	artist, title = t.ScrobbleArtist, t.ScrobbleTitle
	if artist == "" {
		artist = t.RawArtist
	}
	if title == "" {
		title = t.RawTitle
	}
	return artist, title
}

// Clone returns a deep copy so readers never share the loop's record.
func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}
	c := *t
	if t.Thumbnail != nil {
		c.Thumbnail = append([]byte(nil), t.Thumbnail...)
	}
	return &c
}

// SameIdentity reports whether two possibly-nil tracks are the same track
// for change-detection purposes.
func SameIdentity(a, b *Track) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Identity() == b.Identity()
}
