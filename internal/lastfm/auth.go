package lastfm

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"
)

const (
	// AuthPollInterval is how often the session exchange is retried.
	AuthPollInterval = 2 * time.Second
	// AuthTimeout bounds how long the user has to approve the token.
	AuthTimeout = 120 * time.Second
)

// ErrAuthTimeout is returned when the user did not approve in time.
var ErrAuthTimeout = errors.New("authorization timed out")

// Authenticator is the part of Client the authorization flow needs.
type Authenticator interface {
	GetToken() (string, error)
	GetAuthURL(token string) string
	GetSession(token string) (username, sessionKey string, err error)
}

// Authorize runs the desktop authorization flow: request a token, hand the
// approval URL to open, then poll the session exchange every
// AuthPollInterval until it succeeds or AuthTimeout elapses. A failing open
// is not fatal; the caller is expected to also show the URL.
func Authorize(ctx context.Context, a Authenticator, open func(url string) error) (Session, error) {
	token, err := a.GetToken()
	if err != nil {
		return Session{}, err
	}

	if open != nil {
		_ = open(a.GetAuthURL(token)) //nolint:errcheck // URL is shown to the user as well
	}

	deadline := time.NewTimer(AuthTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(AuthPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Session{}, ctx.Err()
		case <-deadline.C:
			return Session{}, ErrAuthTimeout
		case <-ticker.C:
			username, key, err := a.GetSession(token)
			if err != nil || key == "" {
				continue
			}
			return Session{Username: username, Key: key}, nil
		}
	}
}

// OpenBrowser opens the given URL in the default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
