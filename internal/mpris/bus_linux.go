//go:build linux

package mpris

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

type sessionBus struct {
	conn *dbus.Conn
}

func connect() (Bus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &sessionBus{conn: conn}, nil
}

func (b *sessionBus) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := b.conn.BusObject().
		CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).
		Store(&names)
	return names, err
}

func (b *sessionBus) Identity(ctx context.Context, name string) (string, error) {
	var v dbus.Variant
	err := b.conn.Object(name, objectPath).
		CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, rootInterface, "Identity").
		Store(&v)
	if err != nil {
		return "", err
	}
	identity, _ := v.Value().(string)
	return identity, nil
}

func (b *sessionBus) PlayerProperties(ctx context.Context, name string) (map[string]dbus.Variant, error) {
	var props map[string]dbus.Variant
	err := b.conn.Object(name, objectPath).
		CallWithContext(ctx, "org.freedesktop.DBus.Properties.GetAll", 0, playerInterface).
		Store(&props)
	return props, err
}

func (b *sessionBus) Close() error {
	return b.conn.Close()
}
