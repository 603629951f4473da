package config

import (
	"flag"
	"time"

	"github.com/01011010/notesum-hybrid/internal/flagx"
)

// parseFlags overlays command-line flags. Flags of other components in args
// are ignored.
func parseFlags(cfg *Config, args []string) error {
	interval := -1
	err := flagx.Parse("client", args, func(fs *flag.FlagSet) {
		fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
		fs.IntVar(&interval, "i", interval, "online check interval (in seconds)")
		fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
		fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "access token")
		fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")
		fs.StringVar(&cfg.LogFile, "f", cfg.LogFile, "log file")
		fs.StringVar(&cfg.Timezone, "z", cfg.Timezone, "timezone")
	})
	if err != nil {
		return err
	}
	if interval > 0 {
		cfg.OnlineCheckInterval = time.Duration(interval) * time.Second
	}
	return nil
}
