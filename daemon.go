package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/llehouerou/listenbridge/internal/config"
	"github.com/llehouerou/listenbridge/internal/imagehost"
	"github.com/llehouerou/listenbridge/internal/itunes"
	"github.com/llehouerou/listenbridge/internal/lastfm"
	"github.com/llehouerou/listenbridge/internal/logging"
	"github.com/llehouerou/listenbridge/internal/mpris"
	"github.com/llehouerou/listenbridge/internal/notify"
	"github.com/llehouerou/listenbridge/internal/playback"
	"github.com/llehouerou/listenbridge/internal/poller"
	"github.com/llehouerou/listenbridge/internal/presence"
	"github.com/llehouerou/listenbridge/internal/resolver"
	"github.com/llehouerou/listenbridge/internal/scrobble"
	"github.com/llehouerou/listenbridge/internal/state"
	"github.com/llehouerou/listenbridge/internal/stats"
)

// daemon owns what a config reload may change.
type daemon struct {
	st      state.Interface
	tracker *scrobble.Tracker
	logger  *slog.Logger

	mu  sync.Mutex
	cfg *config.Config
}

func runDaemon(ctx context.Context, level slog.Level) error {
	logger, logFile, err := logging.Setup(level)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logFile.Close()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Info("starting listenbridge", "version", version, "config", config.Paths())

	st, err := state.Open()
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer st.Close()

	source, err := mpris.New(cfg.PlayerIdentifiers(), logger.With("component", "mpris"))
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}
	defer source.Close()

	collector := stats.New(st, logger.With("component", "stats"))
	tracker := scrobble.NewTracker(nil, logger.With("component", "scrobble"))
	tracker.OnScrobbled(collector.Scrobbled)

	d := &daemon{st: st, tracker: tracker, logger: logger}
	d.apply(cfg)

	if !cfg.HasDiscordConfig() {
		logger.Warn("discord client_id not set, rich presence disabled")
	}
	pres := presence.NewDiscord(cfg.Discord.ClientID, cfg.Discord.ButtonLabel, logger.With("component", "presence"))
	defer pres.Close()

	history, err := st.LoadHistory()
	if err != nil {
		logger.Warn("load history failed", "error", err)
	}

	p := poller.New(poller.Config{
		Source:      source,
		Resolver:    newResolver(cfg, logger.With("component", "resolver")),
		Presence:    pres,
		Scrobbler:   tracker,
		History:     history,
		StartPaused: cfg.StartPaused,
		Logger:      logger.With("component", "poller"),
	})
	defer p.Close()

	g, ctx := errgroup.WithContext(ctx)

	statsSub := p.Subscribe()
	g.Go(func() error { return collector.Run(ctx, statsSub) })

	historySub := p.Subscribe()
	g.Go(func() error { return persistHistory(ctx, historySub, st) })

	if cfg.NotificationsEnabled() {
		n, err := notify.New()
		if err != nil {
			logger.Warn("notifications unavailable", "error", err)
		} else {
			dispatcher := notify.NewDispatcher(n, logger.With("component", "notify"))
			notifySub := p.Subscribe()
			g.Go(func() error { return dispatcher.Run(ctx, notifySub) })
		}
	}

	g.Go(func() error {
		// Without a watcher SIGHUP still reloads.
		if err := config.Watch(ctx, config.Paths(), d.reload); err != nil {
			logger.Warn("config hot reload unavailable", "error", err)
		}
		return nil
	})

	g.Go(func() error { return handleSignals(ctx, p, d.reload) })

	p.Start(ctx)
	g.Go(func() error {
		<-ctx.Done()
		p.Close()
		return nil
	})

	err = g.Wait()
	logger.Info("shutting down")
	fmt.Print(stats.FormatSession(collector.Session(), time.Now()))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// reload re-reads the configuration and the stored Last.fm session. A bad
// file keeps the previous configuration.
func (d *daemon) reload() {
	cfg, err := config.Load()
	if err != nil {
		d.logger.Warn("config reload failed", "error", err)
		return
	}

	d.mu.Lock()
	prev := d.cfg
	d.mu.Unlock()
	if prev != nil && prev.Discord != cfg.Discord {
		d.logger.Info("discord settings change on restart")
	}

	d.apply(cfg)
	d.logger.Info("config reloaded", "scrobbling", cfg.ScrobblingEnabled())
}

// apply swaps the scrobble service in for cfg. Tracking state is kept so a
// reload never submits the current track twice.
func (d *daemon) apply(cfg *config.Config) {
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()

	if !cfg.ScrobblingEnabled() {
		d.tracker.SetService(nil)
		return
	}

	client := lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret, lastfm.WithLookupKey(cfg.LookupKey()))
	sess, err := d.st.GetLastfmSession()
	switch {
	case err != nil:
		d.logger.Warn("read lastfm session failed", "error", err)
	case sess == nil:
		d.logger.Info("lastfm account not linked, run `listenbridge auth`")
	default:
		client.SetSessionKey(sess.SessionKey)
		d.logger.Info("scrobbling enabled", "user", sess.Username)
	}
	d.tracker.SetService(client)
}

func newResolver(cfg *config.Config, logger *slog.Logger) *resolver.Resolver {
	rc := resolver.Config{
		Catalog: itunes.NewClient(),
		Logger:  logger,
	}
	if key := cfg.LookupKey(); key != "" {
		rc.Lookup = lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret, lastfm.WithLookupKey(key))
	}
	if cfg.UploadArtwork() {
		maxSize := cfg.ArtworkMaxSize()
		rc.Uploader = imagehost.Default(logger)
		rc.Prepare = func(b []byte) []byte { return imagehost.Prepare(b, maxSize) }
	}
	return resolver.New(rc)
}

// historySaver is the part of the state store persistHistory needs.
type historySaver interface {
	SaveHistory(entries []string)
}

func persistHistory(ctx context.Context, sub *playback.Subscription, s historySaver) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Done:
			return nil
		case e := <-sub.HistoryChanged:
			s.SaveHistory(e.Entries)
		}
	}
}

// controller is what the command signals drive.
type controller interface {
	TogglePause()
	ForceRefresh()
}

func handleSignals(ctx context.Context, c controller, reload func()) error {
	if len(commandSignals) == 0 {
		<-ctx.Done()
		return nil
	}
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, commandSignals...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-ch:
			dispatchCommand(commandFor(sig), c, reload)
		}
	}
}

type command int

const (
	cmdNone command = iota
	cmdTogglePause
	cmdForceRefresh
	cmdReload
)

func dispatchCommand(cmd command, c controller, reload func()) {
	switch cmd {
	case cmdTogglePause:
		c.TogglePause()
	case cmdForceRefresh:
		c.ForceRefresh()
	case cmdReload:
		reload()
	case cmdNone:
	}
}
