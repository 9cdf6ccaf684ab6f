// Package resolver enriches a track with artwork, a store link and the
// canonical artist/title to scrobble under.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/listenbridge/internal/itunes"
	"github.com/llehouerou/listenbridge/internal/lastfm"
	"github.com/llehouerou/listenbridge/internal/playback"
)

const (
	// SearchLimit is the number of track.search results considered.
	SearchLimit = 30
	// CallTimeout bounds each catalog or lookup request.
	CallTimeout = 10 * time.Second
	// UploadTimeout bounds the whole upload step, which may try several
	// hosts in turn.
	UploadTimeout = 30 * time.Second
)

// Result is what Resolve found for a track.
type Result struct {
	ArtworkURL     string
	ExternalURL    string
	ScrobbleArtist string
	ScrobbleTitle  string
}

// Apply copies r onto t.
func (r Result) Apply(t *playback.Track) {
	t.ArtworkURL = r.ArtworkURL
	t.ExternalURL = r.ExternalURL
	t.ScrobbleArtist = r.ScrobbleArtist
	t.ScrobbleTitle = r.ScrobbleTitle
}

// Catalog searches the primary catalog.
type Catalog interface {
	Search(ctx context.Context, term string) ([]itunes.Result, error)
}

// TrackLookup is the scrobble service's lookup API.
type TrackLookup interface {
	SearchTrack(ctx context.Context, title string, limit int) ([]lastfm.TrackMatch, error)
	TrackImages(ctx context.Context, artist, track string) ([]lastfm.Image, error)
}

// Uploader publishes raw artwork bytes.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// Config holds the resolver's collaborators. Any of them may be nil, which
// skips the steps that need it.
type Config struct {
	Catalog  Catalog
	Lookup   TrackLookup
	Uploader Uploader
	// Prepare transforms thumbnail bytes before upload.
	Prepare func([]byte) []byte
	Logger  *slog.Logger
}

// Resolver runs the enrichment pipeline with a bounded cache in front.
type Resolver struct {
	cache    *Cache
	catalog  Catalog
	lookup   TrackLookup
	uploader Uploader
	prepare  func([]byte) []byte
	logger   *slog.Logger

	callTimeout   time.Duration
	uploadTimeout time.Duration
}

// New creates a resolver.
func New(cfg Config) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Resolver{
		catalog:  cfg.Catalog,
		lookup:   cfg.Lookup,
		uploader: cfg.Uploader,
		prepare:  cfg.Prepare,
		logger:   logger,

		callTimeout:   CallTimeout,
		uploadTimeout: UploadTimeout,
	}
	r.cache = NewCache(CacheSize, func(key string) {
		logger.Debug("resolver cache evicted", "key", key)
	})
	return r
}

// Cache exposes the resolution cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve enriches track. It never fails: every lookup error degrades to
// the next fallback, and the result always carries scrobble names and an
// external URL. An artwork URL already on the track (a public art URL
// reported by the player) is kept and skips the upload and artwork lookups.
// Every request gets its own deadline, so a slow step never starves the
// next. Nothing is cached once ctx itself is done.
func (r *Resolver) Resolve(ctx context.Context, track *playback.Track) Result {
	key := track.CacheKey()
	if res, ok := r.cache.Get(key); ok {
		r.logger.Debug("resolver cache hit", "key", key)
		return res
	}

	res := Result{ArtworkURL: track.ArtworkURL}
	searchArtist := playback.CleanArtist(track.RawArtist)
	searchTitle := playback.CleanTitle(track.RawTitle)

	if res.ArtworkURL == "" && len(track.Thumbnail) > 0 && r.uploader != nil {
		res.ArtworkURL = r.uploadThumbnail(ctx, track.Thumbnail)
	}

	// Catalog search. A low-confidence best match is held back until the
	// scrobble service had a chance to do better.
	var fallback *itunes.Result
	confident := false
	if r.catalog != nil {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		results, err := r.catalog.Search(callCtx, searchArtist+" "+searchTitle)
		cancel()
		switch {
		case err != nil:
			r.logger.Warn("catalog search failed", "artist", searchArtist, "title", searchTitle, "error", err)
		default:
			r.logger.Debug("catalog search", "artist", searchArtist, "title", searchTitle, "results", len(results))
			if best, score, ok := bestCatalogMatch(results, searchArtist, searchTitle); ok {
				res.ExternalURL = best.TrackViewURL
				if res.ArtworkURL == "" && best.ArtworkURL != "" {
					res.ArtworkURL = itunes.UpgradeArtwork(best.ArtworkURL)
				}
				if score >= ConfidentScore {
					confident = true
					res.ScrobbleArtist, res.ScrobbleTitle = best.ArtistName, best.TrackName
					r.logger.Debug("catalog match", "score", score, "artist", best.ArtistName, "title", best.TrackName)
				} else {
					fallback = &best
					r.logger.Debug("low confidence catalog match", "score", score, "artist", best.ArtistName, "title", best.TrackName)
				}
			}
		}
	}

	if res.ArtworkURL == "" && r.lookup != nil {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		images, err := r.lookup.TrackImages(callCtx, track.RawArtist, track.RawTitle)
		cancel()
		if err != nil {
			r.logger.Debug("track info lookup failed", "error", err)
		} else {
			res.ArtworkURL = largestImage(images)
		}
	}

	if !confident && r.lookup != nil {
		if m, ok := r.searchScrobbleNames(ctx, searchArtist, searchTitle); ok {
			res.ScrobbleArtist, res.ScrobbleTitle = m.Artist, m.Name
		}
	}

	if res.ScrobbleArtist == "" || res.ScrobbleTitle == "" {
		if fallback != nil && fallback.ArtistName != "" && fallback.TrackName != "" {
			res.ScrobbleArtist, res.ScrobbleTitle = fallback.ArtistName, fallback.TrackName
		} else {
			res.ScrobbleArtist, res.ScrobbleTitle = playback.CleanForScrobble(track.RawArtist, track.RawTitle)
			r.logger.Debug("all lookups failed, using cleaned names",
				"artist", res.ScrobbleArtist, "title", res.ScrobbleTitle)
		}
	}

	if res.ExternalURL == "" {
		res.ExternalURL = itunes.StorefrontSearchURL(searchArtist, searchTitle)
	}

	if ctx.Err() != nil {
		r.logger.Debug("resolution interrupted, not cached", "key", key)
		return res
	}
	r.cache.Add(key, res)
	return res
}

func (r *Resolver) uploadThumbnail(ctx context.Context, thumb []byte) string {
	data := thumb
	if r.prepare != nil {
		data = r.prepare(thumb)
	}
	ctx, cancel := context.WithTimeout(ctx, r.uploadTimeout)
	defer cancel()
	u, err := r.uploader.Upload(ctx, data)
	if err != nil {
		r.logger.Warn("artwork upload failed", "error", err)
		return ""
	}
	return u
}

func (r *Resolver) searchScrobbleNames(ctx context.Context, artist, title string) (lastfm.TrackMatch, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	matches, err := r.lookup.SearchTrack(ctx, title, SearchLimit)
	if err != nil {
		r.logger.Debug("track search failed", "title", title, "error", err)
		return lastfm.TrackMatch{}, false
	}
	m, ok := bestSearchMatch(matches, SplitArtists(artist), title)
	if ok {
		r.logger.Debug("track search match",
			"artist", m.Artist, "title", m.Name, "listeners", humanize.Comma(int64(m.Listeners)))
	}
	return m, ok
}
