package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/01011010/notesum-hybrid/internal/client/calendar"
	"github.com/01011010/notesum-hybrid/internal/client/config"
	"github.com/01011010/notesum-hybrid/internal/client/remote"
	"github.com/01011010/notesum-hybrid/internal/client/repositories/metadata"
	"github.com/01011010/notesum-hybrid/internal/client/repositories/pages"
	"github.com/01011010/notesum-hybrid/internal/client/scheduler"
	"github.com/01011010/notesum-hybrid/internal/client/services"
	"github.com/01011010/notesum-hybrid/internal/client/session"
	"github.com/01011010/notesum-hybrid/internal/client/storage"
	"github.com/01011010/notesum-hybrid/internal/client/syncer"
	"github.com/01011010/notesum-hybrid/internal/client/vault"
	"github.com/01011010/notesum-hybrid/internal/events"
	"github.com/01011010/notesum-hybrid/internal/filex"
	"github.com/01011010/notesum-hybrid/internal/logging"
	"github.com/01011010/notesum-hybrid/internal/parser"
	"github.com/01011010/notesum-hybrid/internal/rpc"
	"github.com/01011010/notesum-hybrid/internal/worker"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

// remoteClient is the server connection: the sync engine's page store plus
// the calls the REPL makes directly.
type remoteClient interface {
	syncer.RemoteStore
	Ping(ctx context.Context) error
	SetToken(token string)
	ExportSnapshot(ctx context.Context) (*rpc.ExportSnapshotResponse, error)
	Close() error
}

type App struct {
	config   *config.Config
	log      logging.Logger
	db       *sql.DB
	remote   remoteClient
	vault    *vault.Vault
	notes    services.NotesService
	engine   *syncer.Engine
	smart    *scheduler.SmartSync
	worker   *worker.Worker
	bus      *events.Bus
	calendar *calendar.Store

	reader  *bufio.Reader
	out     io.Writer
	closers []io.Closer

	mu      sync.RWMutex
	mode    Mode
	session *session.Session
	page    *openPage
}

// NewApp opens the local database and log file and wires every client
// component. Nothing runs until Run.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	for _, path := range []string{c.LogFile, c.DatabasePath} {
		if err := filex.EnsureParentDir(path); err != nil {
			return nil, err
		}
	}
	logFile, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := logging.NewTextLogger(logFile, c.SlogLevel())

	db, err := storage.Open(ctx, c.DatabasePath)
	if err != nil {
		_ = logFile.Close()
		return nil, err
	}

	client, err := remote.NewGRPCClient(c.ServerEndpointAddr, "")
	if err != nil {
		_ = db.Close()
		_ = logFile.Close()
		return nil, err
	}

	a := newApp(c, logger, db, client, os.Stdin, os.Stdout)
	a.closers = append(a.closers, db, logFile)

	if c.AccessToken != "" {
		if err := a.setToken(c.AccessToken); err != nil {
			logger.Warn(ctx, "Ignoring configured access token", "error", err)
		}
	}
	return a, nil
}

func newApp(c *config.Config, logger logging.Logger, db *sql.DB, client remoteClient, in io.Reader, out io.Writer) *App {
	a := &App{
		config:   c,
		log:      logger,
		db:       db,
		remote:   client,
		vault:    vault.New(db),
		notes:    services.NewNotesService(db),
		bus:      events.NewBus(),
		calendar: calendar.New(),
		reader:   bufio.NewReader(in),
		out:      out,
		mode:     ModeOffline,
	}

	opts := syncer.DefaultOptions()
	opts.RecoveryInterval = c.RecoveryInterval
	a.engine = syncer.New(syncer.Deps{
		Pages:    pages.NewSQLiteRepository(db),
		Meta:     metadata.NewSQLiteRepository(db),
		Remote:   client,
		Keys:     a.vault,
		Identity: syncer.IdentityFunc(a.userID),
		Events:   a.bus,
		Logger:   logger,
	}, opts)

	sc := scheduler.DefaultConfig()
	sc.LocalSaveDelay = c.LocalSaveDelay
	sc.CloudSyncDelay = c.CloudSyncDelay
	sc.MaxSyncDelay = c.MaxSyncDelay
	a.smart = scheduler.New(sc, a.notes, a.engine, a.bus, nil, logger)

	a.worker = worker.New(parser.New(nil, parser.WithTimezone(c.Location())), logger)

	a.bus.Subscribe(events.SyncComplete, a.onSyncEvent)
	a.bus.Subscribe(events.SyncError, a.onSyncEvent)
	return a
}

func (a *App) onSyncEvent(name string, payload any) {
	switch p := payload.(type) {
	case events.CompletePayload:
		a.log.Info(context.Background(), "Sync completed", "job", p.JobID, "processed", p.TotalProcessed, "failed", len(p.FailedItems))
	case events.ErrorPayload:
		a.log.Warn(context.Background(), "Sync failed", "error", p.Error)
	default:
		a.log.Debug(context.Background(), "Sync event", "name", name)
	}
}

func (a *App) setToken(token string) error {
	s, err := session.FromToken(token)
	if err != nil {
		return err
	}
	a.remote.SetToken(s.Token)
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
	return nil
}

func (a *App) userID() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil || a.session.Expired(time.Now()) {
		return "", false
	}
	return a.session.UserID, true
}

func (a *App) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

func (a *App) setMode(ctx context.Context, mode Mode) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == mode {
		return false
	}
	a.mode = mode
	a.log.Info(ctx, "Switched mode", "mode", mode)
	return true
}

// StartOnlineStatusWatcher pings the server every interval until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// checkOnline updates the mode. A reachable server without an access token
// means sync is disabled. Coming back online starts a sync so edits made
// offline are pushed.
func (a *App) checkOnline(ctx context.Context) {
	mode := ModeOnline
	if err := a.remote.Ping(ctx); err != nil {
		mode = ModeOffline
	} else if _, ok := a.userID(); !ok {
		mode = ModeDisabled
	}
	if a.setMode(ctx, mode) && mode == ModeOnline {
		res := a.engine.Sync(ctx, syncer.Request{})
		a.log.Debug(ctx, "Reconnect sync finished", "success", res.Success, "reason", res.Reason)
	}
}

// Run starts the parse worker, the sync scheduler and the online watcher,
// then serves the REPL until the user exits or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.log.Info(ctx, "Starting client...", "server", a.config.ServerEndpointAddr, "database", a.config.DatabasePath)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.worker.Run(gctx)
	})
	g.Go(func() error {
		return a.smart.Run(gctx)
	})
	g.Go(func() error {
		a.StartOnlineStatusWatcher(gctx, a.config.OnlineCheckInterval)
		return nil
	})
	g.Go(func() error {
		done := make(chan struct{})
		go func() {
			defer close(done)
			a.Root(gctx)
		}()
		select {
		case <-done:
		case <-gctx.Done():
		}
		cancel()
		return nil
	})

	err := g.Wait()
	a.Close(context.Background())
	return err
}

// Close flushes the open page, stops background work and releases the
// database and log file.
func (a *App) Close(ctx context.Context) {
	if p := a.currentPage(); p != nil {
		if err := a.smart.PrepareClose(ctx, p.id, p.content()); err != nil {
			a.log.Warn(ctx, "Failed to flush page on exit", "page", p.id, "error", err)
		}
	}
	a.engine.Close()
	a.vault.Lock()
	if err := a.remote.Close(); err != nil {
		a.log.Warn(ctx, "Failed to close server connection", "error", err)
	}
	a.log.Info(ctx, "Client stopped")
	for _, c := range a.closers {
		_ = c.Close()
	}
}

func (a *App) currentPage() *openPage {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.page
}

func (a *App) setCurrentPage(p *openPage) {
	a.mu.Lock()
	a.page = p
	a.mu.Unlock()
}

// status is shown in the prompt: mode, lock state and the open page.
func (a *App) status() string {
	s := string(a.Mode())
	if !a.vault.IsUnlocked() {
		s += " locked"
	}
	if p := a.currentPage(); p != nil {
		s += " " + p.name
	}
	return "(" + s + ")"
}
