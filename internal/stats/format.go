package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/listenbridge/internal/render"
	"github.com/llehouerou/listenbridge/internal/state"
)

const artistColumn = 32

// FormatDuration renders d as "2h 5m", or "5m" under an hour.
func FormatDuration(d time.Duration) string {
	d = d.Truncate(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// FormatSession renders the session counters.
func FormatSession(s Session, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session started %s\n", humanize.RelTime(s.Started, now, "ago", "from now"))
	fmt.Fprintf(&b, "Tracks played:  %s\n", humanize.Comma(int64(s.Tracks)))
	fmt.Fprintf(&b, "Listen time:    %s\n", FormatDuration(s.ListenTime))
	fmt.Fprintf(&b, "Scrobbles:      %s\n", humanize.Comma(int64(s.Scrobbles)))
	writeArtists(&b, s.TopArtists(DefaultTopArtists))
	return b.String()
}

// FormatTotals renders the cumulative statistics.
func FormatTotals(t *state.Totals, now time.Time) string {
	var b strings.Builder
	if t.FirstPlay.IsZero() {
		b.WriteString("Nothing recorded yet\n")
	} else {
		fmt.Fprintf(&b, "Since %s (%s)\n",
			t.FirstPlay.Format("2006-01-02"), humanize.RelTime(t.FirstPlay, now, "ago", "from now"))
	}
	fmt.Fprintf(&b, "Tracks played:  %s\n", humanize.Comma(int64(t.Plays)))
	fmt.Fprintf(&b, "Listen time:    %s\n", FormatDuration(t.ListenTime))
	fmt.Fprintf(&b, "Scrobbles:      %s\n", humanize.Comma(int64(t.Scrobbles)))
	writeArtists(&b, t.TopArtists)
	return b.String()
}

func writeArtists(b *strings.Builder, artists []state.ArtistCount) {
	if len(artists) == 0 {
		return
	}
	b.WriteString("Top artists:\n")
	for i, a := range artists {
		fmt.Fprintf(b, "  %d. %s %s\n", i+1, render.PadRight(a.Artist, artistColumn), plays(a.Plays))
	}
}

func plays(n int) string {
	if n == 1 {
		return "1 play"
	}
	return humanize.Comma(int64(n)) + " plays"
}
