//go:build windows

package discord

import (
	"fmt"
	"io"
	"os"
)

func dialIPC() (io.ReadWriteCloser, error) {
	var lastErr error
	for i := range ipcSlots {
		path := fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i)
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err == nil {
			return f, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no discord ipc pipe: %w", lastErr)
}
