package notify

import (
	"context"
	"html"
	"log/slog"
	"strings"

	"github.com/llehouerou/listenbridge/internal/playback"
	"github.com/llehouerou/listenbridge/internal/render"
)

const (
	trackIcon    = "audio-x-generic"
	errorIcon    = "dialog-error"
	trackTimeout = 5000
	errorTimeout = 10000
)

// Dispatcher turns playback events into desktop notifications. Each kind
// replaces its previous notification instead of stacking up.
type Dispatcher struct {
	n      Notifier
	logger *slog.Logger

	trackID uint32
	errorID uint32
}

// NewDispatcher creates a dispatcher sending through n.
func NewDispatcher(n Notifier, logger *slog.Logger) *Dispatcher {
	if n == nil {
		n = Nop{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{n: n, logger: logger}
}

// Run consumes sub until ctx is cancelled or sub is closed.
func (d *Dispatcher) Run(ctx context.Context, sub *playback.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Done:
			return nil
		case e := <-sub.TrackChanged:
			d.TrackChanged(e)
		case e := <-sub.StatusChanged:
			d.StatusChanged(e)
		}
	}
}

// TrackChanged announces a newly started track. Stops and refreshes are
// not announced.
func (d *Dispatcher) TrackChanged(e playback.TrackChange) {
	if e.Current == nil || e.IsRefresh() {
		return
	}
	id, err := d.n.Notify(TrackNotification(e.Current, d.trackID))
	if err != nil {
		d.logger.Debug("track notification failed", "error", err)
		return
	}
	d.trackID = id
}

// StatusChanged surfaces error statuses. Other statuses are ignored.
func (d *Dispatcher) StatusChanged(e playback.StatusChange) {
	if !e.IsError {
		return
	}
	id, err := d.n.Notify(Notification{
		Title:      AppName,
		Body:       html.EscapeString(e.Text),
		Icon:       errorIcon,
		Timeout:    errorTimeout,
		ReplacesID: d.errorID,
		Urgency:    UrgencyCritical,
	})
	if err != nil {
		d.logger.Debug("error notification failed", "error", err)
		return
	}
	d.errorID = id
}

// TrackNotification builds the "now playing" notification for t.
func TrackNotification(t *playback.Track, replaces uint32) Notification {
	body := []string{t.Artist}
	if t.Album != "" {
		body = append(body, t.Album)
	}
	return Notification{
		Title:      render.Sanitize(t.Title),
		Body:       html.EscapeString(render.Sanitize(strings.Join(body, " - "))),
		Icon:       trackIcon,
		Timeout:    trackTimeout,
		ReplacesID: replaces,
		Urgency:    UrgencyLow,
	}
}
