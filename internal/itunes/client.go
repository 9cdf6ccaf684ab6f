// Package itunes queries the iTunes Search API, the catalog the resolver
// uses for canonical names, store links and artwork.
package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the iTunes Search API endpoint.
	DefaultBaseURL = "https://itunes.apple.com/search"

	// StorefrontSearchBase is the web search page used when no direct
	// track link was found.
	StorefrontSearchBase = "https://music.apple.com/search"

	userAgent      = "ListenBridge/0.1 (https://github.com/llehouerou/listenbridge)"
	requestTimeout = 10 * time.Second
	searchLimit    = 10
)

// Result is one song returned by a search.
type Result struct {
	ArtistName   string `json:"artistName"`
	TrackName    string `json:"trackName"`
	TrackViewURL string `json:"trackViewUrl"`
	ArtworkURL   string `json:"artworkUrl100"`
}

type searchResponse struct {
	ResultCount int      `json:"resultCount"`
	Results     []Result `json:"results"`
}

// Client provides access to the iTunes Search API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new iTunes search client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    DefaultBaseURL,
	}
}

// NewClientWithBaseURL creates a client against another endpoint.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = baseURL
	return c
}

// Search looks up songs matching term. An empty result is not an error.
func (c *Client) Search(ctx context.Context, term string) ([]Result, error) {
	params := url.Values{}
	params.Set("term", term)
	params.Set("media", "music")
	params.Set("entity", "song")
	params.Set("limit", strconv.Itoa(searchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API status %d: %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Results, nil
}

// UpgradeArtwork rewrites a 100px artwork URL to its 512px variant.
func UpgradeArtwork(artworkURL string) string {
	return strings.Replace(artworkURL, "100x100bb", "512x512bb", 1)
}

// StorefrontSearchURL builds a web search link for artist and title.
// It never returns an empty string.
func StorefrontSearchURL(artist, title string) string {
	return StorefrontSearchBase + "?term=" + url.QueryEscape(strings.TrimSpace(artist+" "+title))
}
