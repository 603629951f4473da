package config

import (
	"flag"

	"github.com/01011010/notesum-hybrid/internal/flagx"
)

// parseFlags overlays command-line flags.
//
//	-a string     gRPC bind address (e.g. ":50051")
//	-d string     PostgreSQL DSN
//	-s string     JWT HMAC secret key
//	-t duration   access token validity
//	-u string     S3 root user
//	-p string     S3 root password
//	-b string     S3 bucket
//	-g string     S3 region
//	-e string     S3 base endpoint
//	-l string     log level
func parseFlags(cfg *Config, args []string) error {
	return flagx.Parse("server", args, func(fs *flag.FlagSet) {
		fs.StringVar(&cfg.EndpointAddrGRPC, "a", cfg.EndpointAddrGRPC, "address and port to run server")
		fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
		fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
		fs.DurationVar(&cfg.AccessTokenValidityDuration, "t", cfg.AccessTokenValidityDuration, "access token validity")
		fs.StringVar(&cfg.S3RootUser, "u", cfg.S3RootUser, "S3 root user")
		fs.StringVar(&cfg.S3RootPassword, "p", cfg.S3RootPassword, "S3 root password")
		fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
		fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
		fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")
		fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")
	})
}
