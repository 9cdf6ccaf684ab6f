package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// UpdateNowPlaying sends a "now playing" notification to Last.fm.
func (c *Client) UpdateNowPlaying(ctx context.Context, track ScrobbleTrack) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	params := trackParams(track)

	var resp nowPlayingResponse
	if err := c.call(ctx, "track.updateNowPlaying", params, true, &resp); err != nil {
		return fmt.Errorf("update now playing: %w", err)
	}
	if m := resp.NowPlaying.IgnoredMessage; m.Code != "" && m.Code != "0" {
		code, _ := strconv.Atoi(m.Code) //nolint:errcheck // code is informational
		return &APIError{Code: code, Message: "now playing ignored: " + m.Text}
	}
	return nil
}

// Scrobble submits a track play to Last.fm. A nil error with a result whose
// Done is false means the response was not understood.
func (c *Client) Scrobble(ctx context.Context, track ScrobbleTrack) (ScrobbleResult, error) {
	if !c.IsAuthenticated() {
		return ScrobbleResult{}, ErrNotAuthenticated
	}

	params := trackParams(track)
	params.Set("timestamp", strconv.FormatInt(track.Timestamp.Unix(), 10))

	var resp scrobbleResponse
	if err := c.call(ctx, "track.scrobble", params, true, &resp); err != nil {
		return ScrobbleResult{}, fmt.Errorf("scrobble: %w", err)
	}

	result := ScrobbleResult{
		Accepted: int(resp.Scrobbles.Attr.Accepted),
		Ignored:  int(resp.Scrobbles.Attr.Ignored),
	}
	if entry, ok := firstScrobble(resp.Scrobbles.Scrobble); ok {
		result.IgnoredCode = entry.IgnoredMessage.Code
		result.IgnoredMessage = entry.IgnoredMessage.Text
	}
	return result, nil
}

// SearchTrack runs track.search by title. Results come back in the
// service's relevance order.
func (c *Client) SearchTrack(ctx context.Context, title string, limit int) ([]TrackMatch, error) {
	if c.lookupKey == "" {
		return nil, ErrNoAPIKey
	}

	params := url.Values{}
	params.Set("track", title)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp trackSearchResponse
	if err := c.call(ctx, "track.search", params, false, &resp); err != nil {
		return nil, fmt.Errorf("search track: %w", err)
	}

	raw := resp.Results.TrackMatches.Track
	matches := make([]TrackMatch, 0, len(raw))
	for _, t := range raw {
		matches = append(matches, TrackMatch{
			Name:      t.Name,
			Artist:    t.Artist,
			Listeners: int(t.Listeners),
		})
	}
	return matches, nil
}

// TrackImages returns the album images track.getInfo lists for a track,
// smallest first. A track without album yields no images and no error.
func (c *Client) TrackImages(ctx context.Context, artist, track string) ([]Image, error) {
	if c.lookupKey == "" {
		return nil, ErrNoAPIKey
	}

	params := url.Values{}
	params.Set("artist", artist)
	params.Set("track", track)

	var resp trackInfoResponse
	if err := c.call(ctx, "track.getInfo", params, false, &resp); err != nil {
		return nil, fmt.Errorf("get track info: %w", err)
	}

	images := make([]Image, 0, len(resp.Track.Album.Image))
	for _, img := range resp.Track.Album.Image {
		images = append(images, Image{URL: img.URL, Size: img.Size})
	}
	return images, nil
}

func trackParams(track ScrobbleTrack) url.Values {
	params := url.Values{}
	params.Set("artist", track.Artist)
	params.Set("track", track.Track)
	if track.Album != "" {
		params.Set("album", track.Album)
	}
	if track.Duration > 0 {
		params.Set("duration", strconv.Itoa(int(track.Duration.Seconds())))
	}
	return params
}

func firstScrobble(raw json.RawMessage) (scrobbleEntry, bool) {
	if len(raw) == 0 {
		return scrobbleEntry{}, false
	}
	var one scrobbleEntry
	if err := json.Unmarshal(raw, &one); err == nil {
		return one, true
	}
	var many []scrobbleEntry
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0], true
	}
	return scrobbleEntry{}, false
}
