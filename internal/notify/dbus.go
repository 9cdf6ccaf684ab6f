//go:build linux

package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsName = "org.freedesktop.Notifications"
	notificationsPath = "/org/freedesktop/Notifications"
	methodNotify      = notificationsName + ".Notify"
	methodCloseNotify = notificationsName + ".CloseNotification"
	desktopEntry      = "listenbridge"
	hintUrgency       = "urgency"
	hintDesktopEntry  = "desktop-entry"
)

// caller is the part of dbus.BusObject the notifier uses.
type caller interface {
	Call(method string, flags dbus.Flags, args ...any) *dbus.Call
}

// dbusNotifier talks to the session's org.freedesktop.Notifications server.
type dbusNotifier struct {
	obj caller
}

// New connects to the notification server on the session bus. Without a
// session bus it returns Nop.
func New() (Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return Nop{}, nil //nolint:nilerr // notifications are optional
	}
	return &dbusNotifier{obj: conn.Object(notificationsName, notificationsPath)}, nil
}

func (n *dbusNotifier) Notify(notif Notification) (uint32, error) {
	hints := map[string]dbus.Variant{
		hintUrgency:      dbus.MakeVariant(byte(notif.Urgency)),
		hintDesktopEntry: dbus.MakeVariant(desktopEntry),
	}

	// app_name, replaces_id, app_icon, summary, body, actions, hints, expire_timeout
	call := n.obj.Call(methodNotify, 0,
		AppName, notif.ReplacesID, notif.Icon, notif.Title, notif.Body,
		[]string{}, hints, notif.Timeout,
	)
	if call.Err != nil {
		return 0, fmt.Errorf("send notification: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("read notification id: %w", err)
	}
	return id, nil
}

func (n *dbusNotifier) Close(id uint32) error {
	if err := n.obj.Call(methodCloseNotify, 0, id).Err; err != nil {
		return fmt.Errorf("close notification %d: %w", id, err)
	}
	return nil
}
