// Package syncer is the offline-first sync engine between the local SQLite
// store and the remote page store.
//
// A job runs its phases strictly in order: remote tombstones are applied,
// pending local pages are uploaded encrypted, locally deleted pages are
// removed remotely, and finally remote changes are downloaded and merged.
// Progress is checkpointed so an interrupted job resumes mid-phase.
package syncer

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/01011010/notesum-hybrid/internal/client/repositories/metadata"
	"github.com/01011010/notesum-hybrid/internal/client/repositories/pages"
	"github.com/01011010/notesum-hybrid/internal/events"
	"github.com/01011010/notesum-hybrid/internal/logging"
	"github.com/01011010/notesum-hybrid/internal/models"
	"github.com/01011010/notesum-hybrid/internal/timex"
)

// Reason explains why Sync did not succeed.
type Reason string

const (
	ReasonInProgress       Reason = "SYNC_IN_PROGRESS"
	ReasonNotAuthenticated Reason = "NOT_AUTHENTICATED"
	ReasonVaultLocked      Reason = "VAULT_LOCKED"
	ReasonError            Reason = "SYNC_ERROR"
	ReasonAborted          Reason = "SYNC_ABORTED"
)

var errAborted = errors.New("sync aborted")

// RemoteStore is the remote page collection of the signed-in user.
type RemoteStore interface {
	QueryPages(ctx context.Context, since time.Time, cursor string, limit int) ([]models.RemotePage, string, error)
	QueryTombstones(ctx context.Context, since time.Time, cursor string, limit int) ([]models.Tombstone, string, error)
	GetPage(ctx context.Context, id string) (*models.RemotePage, error)
	BatchWrite(ctx context.Context, upserts []models.RemotePage, deletes []string) (time.Time, error)
	PutTombstone(ctx context.Context, pageID string) error
}

// KeyProvider hands out the content key while the vault is unlocked.
type KeyProvider interface {
	IsUnlocked() bool
	Key() ([]byte, bool)
}

// Identity reports the signed-in user.
type Identity interface {
	UserID() (string, bool)
}

// IdentityFunc adapts a function to Identity.
type IdentityFunc func() (string, bool)

func (f IdentityFunc) UserID() (string, bool) { return f() }

// Request asks for a sync. PageID and IsDelete describe the edit that
// triggered it; a delete pushes a tombstone for PageID before the job runs.
type Request struct {
	PageID   string
	Metadata map[string]any
	IsDelete bool
}

type Result struct {
	Success bool
	Reason  Reason
	Err     error
	Stats   *models.SyncStats
}

type Options struct {
	PageSize              int
	BatchSize             int
	CheckpointProbability float64
	MaxAttempts           int
	RetryBase             time.Duration
	RetryJitterPercent    uint64
	ErrorLogLimit         int
	RecoveryInterval      time.Duration
	ProgressInterval      time.Duration

	// SettleWindow is subtracted from the stored watermark. The server
	// stamps rows with its transaction start time, so a slow writer can
	// commit rows older than ones a reader has already seen.
	SettleWindow time.Duration
}

func DefaultOptions() Options {
	return Options{
		PageSize:              50,
		BatchSize:             20,
		CheckpointProbability: 0.2,
		MaxAttempts:           5,
		RetryBase:             200 * time.Millisecond,
		RetryJitterPercent:    30,
		ErrorLogLimit:         100,
		RecoveryInterval:      time.Minute,
		ProgressInterval:      500 * time.Millisecond,
		SettleWindow:          5 * time.Second,
	}
}

// Deps are the collaborators of an Engine. Events, Clock and Logger are
// optional.
type Deps struct {
	Pages    pages.Repository
	Meta     metadata.Repository
	Remote   RemoteStore
	Keys     KeyProvider
	Identity Identity
	Events   events.Emitter
	Clock    timex.Clock
	Logger   logging.Logger
}

type Engine struct {
	pages    pages.Repository
	meta     metadata.Repository
	remote   RemoteStore
	keys     KeyProvider
	identity Identity
	events   events.Emitter
	clock    timex.Clock
	log      logging.Logger
	opts     Options
	rand     func() float64

	running  atomic.Bool
	aborted  atomic.Bool
	notified atomic.Bool

	mu       sync.Mutex
	job      jobState
	recovery timex.Timer

	errors *errorRing
}

func New(d Deps, opts Options) *Engine {
	def := DefaultOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = def.RetryBase
	}
	if opts.ErrorLogLimit <= 0 {
		opts.ErrorLogLimit = def.ErrorLogLimit
	}
	if opts.RecoveryInterval <= 0 {
		opts.RecoveryInterval = def.RecoveryInterval
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Clock == nil {
		d.Clock = timex.Real()
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}

	return &Engine{
		pages:    d.Pages,
		meta:     d.Meta,
		remote:   d.Remote,
		keys:     d.Keys,
		identity: d.Identity,
		events:   d.Events,
		clock:    d.Clock,
		log:      d.Logger.With("module", "syncer"),
		opts:     opts,
		rand:     rand.Float64,
		errors:   newErrorRing(opts.ErrorLogLimit),
	}
}

// Sync runs one sync job. At most one job runs at a time; a concurrent call
// is rejected, not queued.
func (e *Engine) Sync(ctx context.Context, req Request) Result {
	if !e.running.CompareAndSwap(false, true) {
		e.log.Debug(ctx, "Sync already in progress")
		return Result{Reason: ReasonInProgress}
	}
	defer e.running.Store(false)

	if _, ok := e.identity.UserID(); !ok {
		if e.notified.CompareAndSwap(false, true) {
			e.log.Warn(ctx, "User not authenticated, skipping sync")
		}
		return Result{Reason: ReasonNotAuthenticated}
	}
	e.notified.Store(false)

	if !e.keys.IsUnlocked() {
		e.log.Warn(ctx, "Vault is locked, skipping sync")
		return Result{Reason: ReasonVaultLocked}
	}

	e.stopRecovery()
	e.aborted.Store(false)
	e.resetJob(uuid.NewString(), e.clock.Now())
	jobID := e.jobID()
	e.log.Debug(ctx, "Sync started", "job", jobID, "page", req.PageID, "delete", req.IsDelete, "metadata", req.Metadata)

	if req.IsDelete && req.PageID != "" {
		err := e.withRetry(ctx, "upload_tombstone", func(ctx context.Context) error {
			return e.remote.PutTombstone(ctx, req.PageID)
		})
		if err != nil {
			e.logError(ctx, "upload_tombstone", req.PageID, err)
		}
	}

	err := e.run(ctx)

	switch {
	case err == nil:
		return e.complete(ctx)
	case errors.Is(err, errAborted) || ctx.Err() != nil:
		e.saveCheckpoint(ctx)
		e.log.Info(ctx, "Sync aborted", "job", jobID)
		return Result{Reason: ReasonAborted, Err: err}
	default:
		e.logError(ctx, "sync_job", "", err)
		e.saveCheckpoint(ctx)
		e.scheduleRecovery(ctx)
		e.events.Emit(events.SyncError, events.ErrorPayload{Error: err.Error()})
		return Result{Reason: ReasonError, Err: err}
	}
}

func (e *Engine) run(ctx context.Context) error {
	since, err := e.lastSyncTime(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.job.watermark = since
	e.mu.Unlock()

	var cp models.Checkpoint
	found, err := metadata.GetJSON(ctx, e.meta, metadata.KeyPendingSyncJob, &cp)
	if err != nil {
		e.logError(ctx, "load_checkpoint", "", err)
		found = false
	}
	if found {
		return e.resume(ctx, since, cp)
	}
	return e.fresh(ctx, since)
}

func (e *Engine) fresh(ctx context.Context, since time.Time) error {
	if err := e.applyTombstones(ctx, since); err != nil {
		return err
	}
	if err := e.upload(ctx, ""); err != nil {
		return err
	}
	if err := e.pushDeletions(ctx, ""); err != nil {
		return err
	}
	return e.download(ctx, since, "")
}

func (e *Engine) resume(ctx context.Context, since time.Time, cp models.Checkpoint) error {
	e.log.Info(ctx, "Resuming interrupted sync job", "job", cp.JobID, "phase", cp.Phase)
	e.restore(cp)

	switch cp.Phase {
	case models.PhaseDownloading:
		if err := e.applyTombstones(ctx, since); err != nil {
			return err
		}
		if err := e.upload(ctx, ""); err != nil {
			return err
		}
		if err := e.pushDeletions(ctx, ""); err != nil {
			return err
		}
		return e.download(ctx, since, cp.ResumeToken)
	case models.PhaseUploading:
		if err := e.upload(ctx, cp.ResumeToken); err != nil {
			return err
		}
		if err := e.pushDeletions(ctx, ""); err != nil {
			return err
		}
		return e.download(ctx, since, "")
	case models.PhaseDeleting:
		if err := e.pushDeletions(ctx, cp.ResumeToken); err != nil {
			return err
		}
		return e.download(ctx, since, "")
	default:
		e.log.Warn(ctx, "Unknown sync phase in checkpoint, starting fresh sync", "phase", cp.Phase)
		return e.fresh(ctx, since)
	}
}

func (e *Engine) complete(ctx context.Context) Result {
	now := e.clock.Now()
	e.mu.Lock()
	stats := models.SyncStats{
		JobID:          e.job.id,
		TotalProcessed: e.job.processed,
		FailedItems:    append([]string{}, e.job.failed...),
		Duration:       now.Sub(e.job.start),
	}
	e.mu.Unlock()
	watermark := e.lastSeen()

	if err := e.meta.Delete(ctx, metadata.KeyPendingSyncJob); err != nil {
		e.logError(ctx, "clear_checkpoint", "", err)
	}
	if !watermark.IsZero() {
		if err := metadata.SetJSON(ctx, e.meta, metadata.KeyLastSyncTime, watermark.UTC()); err != nil {
			e.logError(ctx, "save_last_sync_time", "", err)
		}
	}
	last := models.LastSuccessfulSync{Timestamp: now.UTC(), Duration: stats.Duration, ItemsProcessed: stats.TotalProcessed}
	if err := metadata.SetJSON(ctx, e.meta, metadata.KeyLastSuccessfulSync, last); err != nil {
		e.logError(ctx, "save_last_successful_sync", "", err)
	}

	if stats.TotalProcessed > 0 {
		e.log.Info(ctx, "Sync completed", "job", stats.JobID, "processed", stats.TotalProcessed, "duration", stats.Duration)
	}
	e.events.Emit(events.SyncComplete, events.CompletePayload{
		JobID:          stats.JobID,
		TotalProcessed: stats.TotalProcessed,
		FailedItems:    stats.FailedItems,
		DurationMS:     stats.Duration.Milliseconds(),
	})
	return Result{Success: true, Stats: &stats}
}

func (e *Engine) lastSyncTime(ctx context.Context) (time.Time, error) {
	var t time.Time
	if _, err := metadata.GetJSON(ctx, e.meta, metadata.KeyLastSyncTime, &t); err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// Abort asks the running job to stop at its next safe point. It reports
// whether a job was running.
func (e *Engine) Abort() bool {
	if !e.running.Load() {
		return false
	}
	e.aborted.Store(true)
	return true
}

// checkpointSafe is called before every unit of work. It fails when the job
// was aborted, its context ended or the vault was locked meanwhile.
func (e *Engine) checkpointSafe(ctx context.Context) error {
	if e.aborted.Load() {
		return errAborted
	}
	if err := ctx.Err(); err != nil {
		e.aborted.Store(true)
		return errors.Join(errAborted, err)
	}
	if !e.keys.IsUnlocked() {
		e.log.Warn(ctx, "Vault locked during sync, aborting")
		e.aborted.Store(true)
		return errAborted
	}
	return nil
}

func (e *Engine) scheduleRecovery(ctx context.Context) {
	if e.aborted.Load() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recovery != nil {
		e.recovery.Stop()
	}
	e.log.Info(ctx, "Scheduling sync recovery attempt", "in", e.opts.RecoveryInterval)
	e.recovery = e.clock.AfterFunc(e.opts.RecoveryInterval, func() {
		ctx := context.Background()
		res := e.Sync(ctx, Request{})
		if res.Success {
			e.log.Info(ctx, "Recovery sync completed")
		} else {
			e.log.Warn(ctx, "Recovery sync failed", "reason", res.Reason)
		}
	})
}

func (e *Engine) stopRecovery() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recovery != nil {
		e.recovery.Stop()
		e.recovery = nil
	}
}

// Close cancels a scheduled recovery attempt.
func (e *Engine) Close() {
	e.stopRecovery()
}

// ErrorLog returns the recent sync errors from memory and durable storage,
// newest first.
func (e *Engine) ErrorLog(ctx context.Context) ([]models.ErrorRecord, error) {
	var stored []models.ErrorRecord
	if _, err := metadata.GetJSON(ctx, e.meta, metadata.KeySyncErrorLog, &stored); err != nil {
		return nil, err
	}
	return mergeErrorLogs(e.errors.records(), stored, e.opts.ErrorLogLimit), nil
}

func (e *Engine) logError(ctx context.Context, op, docID string, err error) {
	rec := models.ErrorRecord{
		Operation:  op,
		DocumentID: docID,
		Message:    err.Error(),
		Timestamp:  e.clock.Now().UTC(),
		JobID:      e.jobID(),
	}
	e.errors.add(rec)
	e.log.Error(ctx, "Sync error", "operation", op, "document", docID, "error", err)

	if perr := persistError(context.WithoutCancel(ctx), e.meta, rec, e.opts.ErrorLogLimit); perr != nil {
		e.log.Warn(ctx, "Failed to persist sync error", "error", perr)
	}
}
