package playback

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// UnknownArtist is used when the player reports no artist.
const UnknownArtist = "Unknown"

// artistSeparator is the em-dash separator some players append before
// disambiguation text (usually the album).
const artistSeparator = " — "

var (
	titleSuffixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*-\s*Single$`),
		regexp.MustCompile(`(?i)\s*-\s*EP$`),
		regexp.MustCompile(`(?i)\s*\[Explicit\]$`),
		regexp.MustCompile(`(?i)\s*\(Explicit\)$`),
	}

	featParen   = regexp.MustCompile(`(?i)\s*\(feat\..*?\)`)
	featTrailer = regexp.MustCompile(`(?i)\s*(feat\.|featuring|ft\.)\s*.*`)

	scrobbleTitleRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*\(feat\.[^)]*\)`),
		regexp.MustCompile(`(?i)\s*-\s*(Single|EP)$`),
		regexp.MustCompile(`(?i)\s*\[(Explicit|Clean)\]$`),
		regexp.MustCompile(`(?i)\s*\((Explicit|Clean)\)$`),
		regexp.MustCompile(`(?i)\s*-\s*Remastered.*$`),
		regexp.MustCompile(`(?i)\s*\(Remastered.*?\)$`),
	}
)

// CleanTitle strips the cosmetic release suffixes players append to titles.
func CleanTitle(title string) string {
	if title == "" {
		return title
	}
	title = norm.NFC.String(title)
	for _, re := range titleSuffixes {
		title = re.ReplaceAllString(title, "")
	}
	return strings.TrimSpace(title)
}

// CleanArtist drops anything after the first " — " separator.
func CleanArtist(artist string) string {
	if artist == "" {
		return artist
	}
	artist = norm.NFC.String(artist)
	if i := strings.Index(artist, artistSeparator); i > 0 {
		artist = artist[:i]
	}
	return strings.TrimSpace(artist)
}

// CleanForScrobble is the last-resort transform used when no lookup produced
// canonical names: featuring clauses, collaboration markers and release
// suffixes are removed.
func CleanForScrobble(rawArtist, rawTitle string) (artist, title string) {
	artist = norm.NFC.String(rawArtist)
	title = norm.NFC.String(rawTitle)

	artist = featParen.ReplaceAllString(artist, "")
	artist = featTrailer.ReplaceAllString(artist, "")
	if i := strings.Index(artist, artistSeparator); i > 0 {
		artist = artist[:i]
	}

	for _, re := range scrobbleTitleRules {
		title = re.ReplaceAllString(title, "")
	}

	return strings.TrimSpace(artist), strings.TrimSpace(title)
}

// CacheKey returns the lowercased "artist|title" key of a raw pair.
func CacheKey(rawArtist, rawTitle string) string {
	return Fold(norm.NFC.String(rawArtist + "|" + rawTitle))
}

// Fold lowercases s for case-insensitive comparisons.
// A Caser is stateful, so each call gets its own.
func Fold(s string) string {
	return cases.Lower(language.Und).String(s)
}
