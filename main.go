package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

var version = "0.1.0"

const usage = `ListenBridge - mirror your media player to Discord and Last.fm

Usage: listenbridge [command] [options]

Commands:
  run          Start the daemon (default)
  auth         Link a Last.fm account
  logout       Unlink the Last.fm account
  stats        Print cumulative listening statistics
  log path     Print the debug log location
  log clear    Empty the debug log
  version      Print version and exit

Run options:
  -verbose
        Write per-poll detail to the debug log

Signals (run):
  SIGUSR1      Toggle pause/resume
  SIGUSR2      Force a presence refresh
  SIGHUP       Reload the configuration
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	cmd := "run"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "run":
		err = runCommand(ctx, args)
	case "auth":
		err = authCommand(ctx)
	case "logout":
		err = logoutCommand()
	case "stats":
		err = statsCommand()
	case "log":
		err = logCommand(args)
	case "version":
		fmt.Println("listenbridge", version)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		stop()
		log.Fatalf("%s: %v", cmd, err)
	}
}

func runCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.Usage = flag.Usage
	verbose := fs.Bool("verbose", false, "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	return runDaemon(ctx, level)
}
