// Package server wires the notes server together: configuration, the
// Postgres page store, snapshot storage and the gRPC endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/01011010/notesum-hybrid/internal/logging"
	"github.com/01011010/notesum-hybrid/internal/server/auth"
	"github.com/01011010/notesum-hybrid/internal/server/config"
	"github.com/01011010/notesum-hybrid/internal/server/repositories/repomanager"
	"github.com/01011010/notesum-hybrid/internal/server/services"
	"github.com/01011010/notesum-hybrid/internal/server/snapshots"

	gs "github.com/01011010/notesum-hybrid/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.SlogLevel())

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store, err := snapshots.NewS3Store(ctx, snapshots.Options{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	ps := services.NewPagesService(db, rm, store, c.SnapshotURLValidity)
	srv := gs.NewGRPCServer(c.EndpointAddrGRPC, logger, ps, c.SecretKey)

	return &App{config: c, logger: logger, db: db, server: srv}, nil
}

// Run serves until ctx is cancelled or the process receives SIGINT,
// SIGTERM or SIGQUIT.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "config", app.config.String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(ctx)
	})

	err := g.Wait()
	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(ctx, "Failed to close database", "error", cerr)
	}
	app.logger.Info(ctx, "App stopped")
	return err
}

// IssueToken signs an access token for userID with the configured secret
// and lifetime.
func IssueToken(c *config.Config, userID string) (string, error) {
	return auth.GenerateToken(userID, []byte(c.SecretKey), c.AccessTokenValidityDuration)
}
