package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/llehouerou/listenbridge/internal/config"
	"github.com/llehouerou/listenbridge/internal/lastfm"
	"github.com/llehouerou/listenbridge/internal/logging"
	"github.com/llehouerou/listenbridge/internal/state"
	"github.com/llehouerou/listenbridge/internal/stats"
)

var errNoLastfmConfig = errors.New("lastfm api_key and api_secret must be configured")

func authCommand(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.HasLastfmConfig() {
		return errNoLastfmConfig
	}

	st, err := state.Open()
	if err != nil {
		return err
	}
	defer st.Close()

	client := lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret, lastfm.WithLookupKey(cfg.LookupKey()))
	fmt.Println("Waiting for approval (2 minutes)...")
	sess, err := lastfm.Authorize(ctx, client, func(url string) error {
		fmt.Printf("Approve access in your browser:\n  %s\n", url)
		return lastfm.OpenBrowser(url)
	})
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}

	if err := st.SaveLastfmSession(sess.Username, sess.Key); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Printf("Linked Last.fm account %q.\n", sess.Username)
	fmt.Println("A running daemon picks it up on SIGHUP.")
	return nil
}

func logoutCommand() error {
	st, err := state.Open()
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := st.GetLastfmSession()
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Println("No Last.fm account linked.")
		return nil
	}
	if err := st.DeleteLastfmSession(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	fmt.Printf("Unlinked Last.fm account %q.\n", sess.Username)
	return nil
}

func statsCommand() error {
	st, err := state.Open()
	if err != nil {
		return err
	}
	defer st.Close()

	totals, err := st.GetTotals(stats.DefaultTopArtists)
	if err != nil {
		return fmt.Errorf("read statistics: %w", err)
	}
	fmt.Print(stats.FormatTotals(totals, time.Now()))
	return nil
}

func logCommand(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: listenbridge log path|clear")
	}
	switch args[0] {
	case "path":
		path, err := logging.Path()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "clear":
		return logging.Clear()
	default:
		return fmt.Errorf("unknown log command %q", args[0])
	}
}
