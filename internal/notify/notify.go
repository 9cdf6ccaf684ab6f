// Package notify shows desktop notifications for playback events.
package notify

// AppName is the application name notifications are sent under.
const AppName = "ListenBridge"

// Urgency is the freedesktop notification urgency level.
type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// Notification is one desktop notification. Body may hold basic markup,
// so callers escape untrusted text. ReplacesID updates a notification
// already on screen instead of adding another.
type Notification struct {
	Title      string
	Body       string
	Icon       string // icon name or image path
	Timeout    int32  // milliseconds, -1 for the server default
	ReplacesID uint32
	Urgency    Urgency
}

// Notifier shows notifications.
type Notifier interface {
	// Notify shows n and returns the ID the server assigned to it.
	Notify(n Notification) (uint32, error)
	Close(id uint32) error
}

// Nop is a Notifier that drops everything. It stands in when notifications
// are disabled or no notification service is reachable.
type Nop struct{}

func (Nop) Notify(_ Notification) (uint32, error) { return 0, nil }

func (Nop) Close(_ uint32) error { return nil }
