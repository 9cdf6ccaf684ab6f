package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadDelay coalesces the burst of events an editor produces on save.
const ReloadDelay = 250 * time.Millisecond

// ErrNothingToWatch is returned when no config directory exists.
var ErrNothingToWatch = errors.New("no config directory to watch")

// Watch calls onChange after any of the config files is created, written,
// renamed or removed, until ctx is done. The parent directories are watched
// so files that do not exist yet and atomic replaces are seen.
func Watch(ctx context.Context, paths []string, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	files := make(map[string]bool, len(paths))
	watched := 0
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		files[abs] = true
		if err := w.Add(filepath.Dir(abs)); err == nil {
			watched++
		}
	}
	if watched == 0 {
		return ErrNothingToWatch
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod || !files[filepath.Clean(ev.Name)] {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(ReloadDelay)
			} else {
				timer.Reset(ReloadDelay)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch config: %w", err)
		case <-fire:
			fire = nil
			onChange()
		}
	}
}
