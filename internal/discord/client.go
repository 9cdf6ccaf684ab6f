// Package discord is a minimal client for Discord's local RPC socket,
// enough to set and clear rich presence.
package discord

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	ipcSlots    = 10
	dialTimeout = 2 * time.Second
	ioTimeout   = 10 * time.Second
)

// ErrNotConnected is returned by calls made before Login or after a failure.
var ErrNotConnected = errors.New("not connected to discord")

// ResponseError is an error Discord returned for a command, or the reason
// it closed the connection.
type ResponseError struct {
	Code    int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("discord error %d: %s", e.Code, e.Message)
}

// Client talks to the Discord desktop app. Any I/O failure closes the
// connection; Login must be called again to reconnect.
type Client struct {
	clientID string
	dial     func() (io.ReadWriteCloser, error)
	pid      int

	mu   sync.Mutex
	conn io.ReadWriteCloser
}

// NewClient creates a client for the given application ID.
func NewClient(clientID string) *Client {
	return &Client{clientID: clientID, dial: dialIPC, pid: os.Getpid()}
}

// Connected reports whether Login succeeded and no failure happened since.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Login connects and performs the handshake. It is a no-op when connected.
func (c *Client) Login() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	if c.clientID == "" {
		return errors.New("no discord client id configured")
	}

	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.conn = conn

	payload, err := json.Marshal(handshake{Version: 1, ClientID: c.clientID})
	if err != nil {
		c.closeLocked()
		return fmt.Errorf("marshal handshake: %w", err)
	}
	setDeadline(conn)
	if err := writeFrame(conn, opHandshake, payload); err != nil {
		c.closeLocked()
		return fmt.Errorf("write handshake: %w", err)
	}

	resp, err := c.readResponseLocked("")
	if err != nil {
		c.closeLocked()
		return fmt.Errorf("handshake: %w", err)
	}
	if resp.Evt != "READY" {
		c.closeLocked()
		return fmt.Errorf("handshake: unexpected event %q", resp.Evt)
	}
	return nil
}

// SetActivity replaces the presence shown for this application.
func (c *Client) SetActivity(a Activity) error {
	return c.setActivity(&a)
}

// ClearActivity removes the presence.
func (c *Client) ClearActivity() error {
	return c.setActivity(nil)
}

func (c *Client) setActivity(a *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	nonce := uuid.NewString()
	payload, err := json.Marshal(command{
		Cmd:   "SET_ACTIVITY",
		Args:  activityArgs{PID: c.pid, Activity: a},
		Nonce: nonce,
	})
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}

	setDeadline(c.conn)
	if err := writeFrame(c.conn, opFrame, payload); err != nil {
		c.closeLocked()
		return fmt.Errorf("write activity: %w", err)
	}

	if _, err := c.readResponseLocked(nonce); err != nil {
		return err
	}
	return nil
}

// readResponseLocked reads frames until a response with the given nonce
// arrives (any response when nonce is empty), answering pings on the way.
func (c *Client) readResponseLocked(nonce string) (response, error) {
	for {
		op, payload, err := readFrame(c.conn)
		if err != nil {
			c.closeLocked()
			return response{}, fmt.Errorf("read frame: %w", err)
		}

		switch op {
		case opPing:
			if err := writeFrame(c.conn, opPong, payload); err != nil {
				c.closeLocked()
				return response{}, fmt.Errorf("write pong: %w", err)
			}
			continue
		case opClose:
			var e errorData
			_ = json.Unmarshal(payload, &e) //nolint:errcheck // best-effort reason
			c.closeLocked()
			return response{}, &ResponseError{Code: e.Code, Message: e.Message}
		case opFrame:
		default:
			continue
		}

		var resp response
		if err := json.Unmarshal(payload, &resp); err != nil {
			c.closeLocked()
			return response{}, fmt.Errorf("decode response: %w", err)
		}
		if nonce != "" && resp.Nonce != nonce {
			continue
		}
		if resp.Evt == "ERROR" {
			var e errorData
			_ = json.Unmarshal(resp.Data, &e) //nolint:errcheck // best-effort reason
			return resp, &ResponseError{Code: e.Code, Message: e.Message}
		}
		return resp, nil
	}
}

// Logout closes the connection. Safe to call when not connected.
func (c *Client) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = writeFrame(c.conn, opClose, []byte("{}")) //nolint:errcheck // closing anyway
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func setDeadline(conn io.ReadWriteCloser) {
	if d, ok := conn.(interface{ SetDeadline(time.Time) error }); ok {
		_ = d.SetDeadline(time.Now().Add(ioTimeout)) //nolint:errcheck // unsupported on some pipes
	}
}
