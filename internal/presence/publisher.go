// Package presence maps the current track onto Discord rich presence and
// owns the (re)connection to Discord.
package presence

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/llehouerou/listenbridge/internal/discord"
	"github.com/llehouerou/listenbridge/internal/playback"
	"github.com/llehouerou/listenbridge/internal/render"
)

const (
	// TextLimit caps the details and state lines, ellipsis included.
	TextLimit = 128

	// DefaultButtonLabel labels the store link button.
	DefaultButtonLabel = "Play on Apple Music"
)

// ErrDisabled is returned when no Discord application is configured.
var ErrDisabled = errors.New("presence disabled")

// Client is the subset of the Discord client the publisher uses.
type Client interface {
	Login() error
	SetActivity(a discord.Activity) error
	ClearActivity() error
	Logout() error
	Connected() bool
}

// Publisher publishes presence through a client it recreates after every
// failure.
type Publisher struct {
	newClient   func() Client
	buttonLabel string
	logger      *slog.Logger

	mu     sync.Mutex
	client Client
}

// New creates a publisher. newClient is called for every fresh connection;
// a nil newClient disables presence.
func New(newClient func() Client, buttonLabel string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if buttonLabel == "" {
		buttonLabel = DefaultButtonLabel
	}
	return &Publisher{newClient: newClient, buttonLabel: buttonLabel, logger: logger}
}

// NewDiscord creates a publisher for a Discord application ID. An empty ID
// disables presence.
func NewDiscord(clientID, buttonLabel string, logger *slog.Logger) *Publisher {
	if clientID == "" {
		return New(nil, buttonLabel, logger)
	}
	return New(func() Client { return discord.NewClient(clientID) }, buttonLabel, logger)
}

// Enabled reports whether a Discord application is configured.
func (p *Publisher) Enabled() bool {
	return p.newClient != nil
}

// EnsureConnected makes sure a live connection exists, creating a fresh
// client if needed. connected is true when this call established it.
func (p *Publisher) EnsureConnected() (connected bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.newClient == nil {
		return false, ErrDisabled
	}
	if p.client != nil && p.client.Connected() {
		return false, nil
	}
	p.dropLocked()

	c := p.newClient()
	if err := c.Login(); err != nil {
		return false, fmt.Errorf("login: %w", err)
	}
	p.client = c
	p.logger.Info("connected to discord")
	return true, nil
}

// Connected reports whether a live connection exists.
func (p *Publisher) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client != nil && p.client.Connected()
}

// Publish shows track. A nil track clears the presence.
func (p *Publisher) Publish(track *playback.Track, now time.Time) error {
	if track == nil {
		return p.Clear()
	}
	if p.newClient == nil {
		return ErrDisabled
	}
	activity := BuildActivity(track, now, p.buttonLabel)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return discord.ErrNotConnected
	}
	if err := p.client.SetActivity(activity); err != nil {
		p.dropIfBrokenLocked(err)
		return fmt.Errorf("set activity: %w", err)
	}
	p.logger.Debug("presence updated", "details", activity.Details, "state", activity.State)
	return nil
}

// Clear removes the presence. Without a connection there is nothing shown,
// so it succeeds.
func (p *Publisher) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	if err := p.client.ClearActivity(); err != nil {
		p.dropIfBrokenLocked(err)
		return fmt.Errorf("clear activity: %w", err)
	}
	p.logger.Debug("presence cleared")
	return nil
}

// Reset drops the connection. The next EnsureConnected creates a new client.
func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropLocked()
}

// Close clears the presence and disconnects.
func (p *Publisher) Close() {
	_ = p.Clear() //nolint:errcheck // best-effort on shutdown
	p.Reset()
}

func (p *Publisher) dropIfBrokenLocked(err error) {
	var respErr *discord.ResponseError
	if errors.As(err, &respErr) && p.client.Connected() {
		return
	}
	p.dropLocked()
}

func (p *Publisher) dropLocked() {
	if p.client == nil {
		return
	}
	_ = p.client.Logout() //nolint:errcheck // connection is being discarded
	p.client = nil
}

// BuildActivity maps track onto a "Listening to" activity. Timestamps are
// derived from now and the track position so Discord counts down the
// remaining time; they are only set while playing with a known duration.
func BuildActivity(track *playback.Track, now time.Time, buttonLabel string) discord.Activity {
	a := discord.Activity{
		Type:    discord.ActivityTypeListening,
		Details: render.Truncate(track.Title, TextLimit),
		State:   render.Truncate(track.Artist, TextLimit),
	}

	if track.ArtworkURL != "" {
		a.Assets = &discord.Assets{
			LargeImage: track.ArtworkURL,
			LargeText:  render.Truncate(track.Album, TextLimit),
		}
	}

	if track.ExternalURL != "" {
		if buttonLabel == "" {
			buttonLabel = DefaultButtonLabel
		}
		a.Buttons = []discord.Button{{Label: render.Truncate(buttonLabel, 32), URL: track.ExternalURL}}
	}

	if track.IsPlaying && track.Duration > 0 {
		pos := min(max(track.Position, 0), track.Duration)
		a.Timestamps = discord.NewTimestamps(now.Add(-pos), now.Add(track.Duration-pos))
	}
	return a
}
