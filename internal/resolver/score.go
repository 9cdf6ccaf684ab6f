package resolver

import (
	"strings"

	"github.com/llehouerou/listenbridge/internal/itunes"
	"github.com/llehouerou/listenbridge/internal/lastfm"
	"github.com/llehouerou/listenbridge/internal/playback"
)

// ConfidentScore is the minimum score for a catalog match to be trusted
// as the canonical artist and title.
const ConfidentScore = 100

// Score rates how well a catalog candidate matches the searched artist and
// title. Comparisons are case-insensitive.
func Score(candArtist, candTitle, artist, title string) int {
	ca, ct := playback.Fold(candArtist), playback.Fold(candTitle)
	a, t := playback.Fold(artist), playback.Fold(title)

	score := 0
	switch {
	case ca == a:
		score += 100
	case strings.Contains(ca, a) || strings.Contains(a, ca):
		score += 50
	}
	switch {
	case ct == t:
		score += 100
	case strings.Contains(ct, t) || strings.Contains(t, ct):
		score += 50
	}
	if strings.Contains(t, "remix") && strings.Contains(ct, "remix") {
		score += 25
	}
	if strings.Contains(t, "live") && strings.Contains(ct, "live") {
		score += 25
	}
	return score
}

// bestCatalogMatch returns the highest-scoring result. Ties go to the
// earlier result; when nothing scores above zero the first result is the
// fallback. ok is false only for an empty list.
func bestCatalogMatch(results []itunes.Result, artist, title string) (best itunes.Result, score int, ok bool) {
	if len(results) == 0 {
		return itunes.Result{}, 0, false
	}
	bestIdx := -1
	for i, r := range results {
		s := Score(r.ArtistName, r.TrackName, artist, title)
		if s > score {
			score = s
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return results[0], 0, true
	}
	return results[bestIdx], score, true
}

// artistSeparators split collaboration credits into individual artists.
var artistSeparators = []string{" & ", ", ", " x ", " X "}

// SplitArtists breaks a collaboration credit into lowercased artist names.
func SplitArtists(artist string) []string {
	parts := []string{artist}
	for _, sep := range artistSeparators {
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, sep)...)
		}
		parts = next
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, playback.Fold(p))
		}
	}
	return out
}

// bestSearchMatch picks the most listened track.search result whose artist
// overlaps one of artists and whose title overlaps title. A match needs at
// least one listener.
func bestSearchMatch(matches []lastfm.TrackMatch, artists []string, title string) (lastfm.TrackMatch, bool) {
	t := playback.Fold(title)
	var best lastfm.TrackMatch
	bestListeners := 0
	for _, m := range matches {
		ma, mt := playback.Fold(m.Artist), playback.Fold(m.Name)

		artistOK := false
		for _, a := range artists {
			if strings.Contains(ma, a) || strings.Contains(a, ma) {
				artistOK = true
				break
			}
		}
		titleOK := strings.Contains(mt, t) || strings.Contains(t, mt)

		if artistOK && titleOK && m.Listeners > bestListeners {
			best = m
			bestListeners = m.Listeners
		}
	}
	return best, bestListeners > 0
}

// placeholderHash identifies Last.fm's generic "no artwork" star image.
const placeholderHash = "2a96cbd8b46e442fc41c2b86b821562f"

// largestImage returns the last non-empty, non-placeholder image URL.
// Last.fm lists images smallest first.
func largestImage(images []lastfm.Image) string {
	for i := len(images) - 1; i >= 0; i-- {
		u := images[i].URL
		if u != "" && !strings.Contains(u, placeholderHash) {
			return u
		}
	}
	return ""
}
