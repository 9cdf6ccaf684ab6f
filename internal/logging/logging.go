// Package logging sets up the append-only debug log.
package logging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	appName  = "listenbridge"
	fileName = "debug.log"
)

// Path returns the debug log location under the XDG state directory,
// creating its parent directory.
func Path() (string, error) {
	return xdg.StateFile(filepath.Join(appName, fileName))
}

// Setup creates a logger that appends to the debug log at Path.
// The caller is responsible for closing the file.
func Setup(level slog.Level) (*slog.Logger, io.Closer, error) {
	path, err := Path()
	if err != nil {
		return nil, nil, fmt.Errorf("state dir: %w", err)
	}
	return SetupPath(path, level)
}

// SetupPath is Setup with an explicit file.
func SetupPath(path string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	handler := slog.NewTextHandler(quietWriter{f}, &slog.HandlerOptions{Level: level})
	return slog.New(handler), f, nil
}

// Clear truncates the debug log. A missing log is not an error.
func Clear() error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("state dir: %w", err)
	}
	return ClearPath(path)
}

// ClearPath is Clear with an explicit file.
func ClearPath(path string) error {
	if err := os.Truncate(path, 0); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear log: %w", err)
	}
	return nil
}

// quietWriter reports every write as successful so a full disk or a
// removed file never surfaces as a logging error.
type quietWriter struct {
	w io.Writer
}

func (q quietWriter) Write(p []byte) (int, error) {
	_, _ = q.w.Write(p)
	return len(p), nil
}
