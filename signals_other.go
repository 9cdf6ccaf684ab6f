//go:build !unix

package main

import "os"

var commandSignals []os.Signal

func commandFor(_ os.Signal) command {
	return cmdNone
}
