package config

import (
	"log/slog"
	"time"
)

// Config holds runtime settings for the notepad client.
//
// Units: every interval is a time.Duration (e.g., 3*time.Second).
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	DatabasePath        string
	AccessToken         string
	LogLevel            string
	LogFile             string
	Timezone            string

	LocalSaveDelay   time.Duration
	CloudSyncDelay   time.Duration
	MaxSyncDelay     time.Duration
	RecoveryInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.DatabasePath = "notesum.db"
	c.LogLevel = "info"
	c.LogFile = "notesum.log"
	c.LocalSaveDelay = 5 * time.Second
	c.CloudSyncDelay = 30 * time.Second
	c.MaxSyncDelay = 5 * time.Minute
	c.RecoveryInterval = time.Minute
}

// Load constructs a Config, applies defaults, then overlays values from the
// config file (if given) and command-line flags. Later sources take
// precedence over earlier ones.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SlogLevel maps LogLevel to a slog level. Unknown names mean info.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
