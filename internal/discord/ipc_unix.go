//go:build !windows

package discord

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
)

// socketDirs lists where Discord may have created its socket. Flatpak and
// snap installs put it in a subdirectory of the runtime dir.
func socketDirs() []string {
	var base []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(env); v != "" {
			base = append(base, v)
		}
	}
	base = append(base, "/tmp")

	dirs := make([]string, 0, len(base)*3)
	for _, b := range base {
		dirs = append(dirs,
			b,
			filepath.Join(b, "app", "com.discordapp.Discord"),
			filepath.Join(b, "snap.discord"),
		)
	}
	return dirs
}

func dialIPC() (io.ReadWriteCloser, error) {
	var lastErr error
	for _, dir := range socketDirs() {
		for i := range ipcSlots {
			path := filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i))
			conn, err := net.DialTimeout("unix", path, dialTimeout)
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
	}
	return nil, fmt.Errorf("no discord ipc socket: %w", lastErr)
}

