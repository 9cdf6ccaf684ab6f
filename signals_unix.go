//go:build unix

package main

import (
	"os"
	"syscall"
)

var commandSignals = []os.Signal{syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGHUP}

func commandFor(sig os.Signal) command {
	switch sig {
	case syscall.SIGUSR1:
		return cmdTogglePause
	case syscall.SIGUSR2:
		return cmdForceRefresh
	case syscall.SIGHUP:
		return cmdReload
	default:
		return cmdNone
	}
}
