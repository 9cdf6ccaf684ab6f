package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// AppName names the config, state and log directories.
const AppName = "listenbridge"

// Environment overrides.
const (
	EnvDiscordClientID = "LISTENBRIDGE_DISCORD_CLIENT_ID"
	EnvLastfmAPIKey    = "LASTFM_API_KEY"
	EnvLastfmAPISecret = "LASTFM_API_SECRET"
	EnvLastfmLookupKey = "LASTFM_LOOKUP_KEY"
)

// Artwork size bounds, in pixels.
const (
	DefaultArtworkSize = 512
	minArtworkSize     = 64
	maxArtworkSize     = 4096
)

type Config struct {
	StartPaused   bool  `koanf:"start_paused"`
	Notifications *bool `koanf:"notifications"` // desktop notifications (default: true)

	// Discord rich presence (disabled without a client ID)
	Discord DiscordConfig `koanf:"discord"`

	// Last.fm scrobbling and lookups
	Lastfm LastfmConfig `koanf:"lastfm"`

	// Which media player to follow
	Player PlayerConfig `koanf:"player"`

	// Artwork upload settings
	Artwork ArtworkConfig `koanf:"artwork"`
}

// DiscordConfig holds Discord rich presence configuration.
type DiscordConfig struct {
	ClientID    string `koanf:"client_id"`
	ButtonLabel string `koanf:"button_label"` // label of the store link (default: "Play on Apple Music")
}

// LastfmConfig holds Last.fm configuration.
type LastfmConfig struct {
	APIKey     string `koanf:"api_key"`
	APISecret  string `koanf:"api_secret"`
	LookupKey  string `koanf:"lookup_key"` // key for unsigned lookups (default: api_key)
	Scrobbling *bool  `koanf:"scrobbling"` // submit scrobbles (default: true)
}

// PlayerConfig selects the MPRIS player.
type PlayerConfig struct {
	Identifiers []string `koanf:"identifiers"` // case-insensitive substrings of the player's bus name or identity
}

// ArtworkConfig holds artwork upload configuration.
type ArtworkConfig struct {
	Upload  *bool `koanf:"upload"`   // upload local thumbnails to image hosts (default: true)
	MaxSize int   `koanf:"max_size"` // thumbnails are downscaled to fit (64-4096, default: 512)
}

// Load reads .env, the config files from Paths and the environment.
func Load() (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load() //nolint:errcheck // optional file
	return LoadFrom(Paths()...)
}

// LoadFrom reads the given config files in order, later files overriding
// earlier ones, then applies environment overrides. Missing files are
// skipped.
func LoadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)

	cfg.Discord.ClientID = strings.TrimSpace(cfg.Discord.ClientID)
	cfg.Lastfm.APIKey = strings.TrimSpace(cfg.Lastfm.APIKey)
	cfg.Lastfm.APISecret = strings.TrimSpace(cfg.Lastfm.APISecret)
	cfg.Lastfm.LookupKey = strings.TrimSpace(cfg.Lastfm.LookupKey)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{EnvDiscordClientID, &cfg.Discord.ClientID},
		{EnvLastfmAPIKey, &cfg.Lastfm.APIKey},
		{EnvLastfmAPISecret, &cfg.Lastfm.APISecret},
		{EnvLastfmLookupKey, &cfg.Lastfm.LookupKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// Paths returns the config file locations in load order (last wins).
func Paths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/listenbridge/config.toml
		filepath.Join(xdg.ConfigHome, AppName, "config.toml"),
		// 2. ./config.toml (pwd, highest priority)
		"config.toml",
	}
}

// HasDiscordConfig returns true if rich presence is configured.
func (c *Config) HasDiscordConfig() bool {
	return c.Discord.ClientID != ""
}

// HasLastfmConfig returns true if the Last.fm API credentials are set.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != ""
}

// LookupKey returns the API key for unsigned Last.fm lookups.
func (c *Config) LookupKey() string {
	if c.Lastfm.LookupKey != "" {
		return c.Lastfm.LookupKey
	}
	return c.Lastfm.APIKey
}

// ScrobblingEnabled reports whether scrobbles should be submitted.
func (c *Config) ScrobblingEnabled() bool {
	return c.HasLastfmConfig() && boolOr(c.Lastfm.Scrobbling, true)
}

// NotificationsEnabled reports whether desktop notifications are on.
func (c *Config) NotificationsEnabled() bool {
	return boolOr(c.Notifications, true)
}

// UploadArtwork reports whether local thumbnails are uploaded.
func (c *Config) UploadArtwork() bool {
	return boolOr(c.Artwork.Upload, true)
}

// ArtworkMaxSize returns the thumbnail bound with defaults applied.
func (c *Config) ArtworkMaxSize() uint {
	size := c.Artwork.MaxSize
	if size < minArtworkSize || size > maxArtworkSize {
		size = DefaultArtworkSize
	}
	return uint(size) //nolint:gosec // bounded above
}

// PlayerIdentifiers returns the configured identifiers without blanks.
// Empty means the player package defaults.
func (c *Config) PlayerIdentifiers() []string {
	var ids []string
	for _, id := range c.Player.Identifiers {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
