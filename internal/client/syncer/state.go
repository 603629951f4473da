package syncer

import (
	"context"
	"slices"
	"time"

	"github.com/01011010/notesum-hybrid/internal/client/repositories/metadata"
	"github.com/01011010/notesum-hybrid/internal/events"
	"github.com/01011010/notesum-hybrid/internal/models"
)

// jobState is the in-memory state of the current job. Guarded by Engine.mu.
type jobState struct {
	id          string
	start       time.Time
	phase       models.Phase
	resumeToken string
	processed   int
	total       int
	failed      []string
	// skip holds ids that failed in this run and are not retried by it.
	skip      map[string]struct{}
	watermark time.Time
	// ceiling caps the watermark below the oldest failed download so the
	// next job fetches it again.
	ceiling      time.Time
	lastProgress time.Time
}

// Status is a snapshot of the engine for display.
type Status struct {
	InProgress     bool                       `json:"inProgress"`
	JobID          string                     `json:"jobId,omitempty"`
	Phase          models.Phase               `json:"phase,omitempty"`
	Progress       int                        `json:"progress"`
	ProcessedItems int                        `json:"processedItems"`
	TotalItems     int                        `json:"totalItems"`
	FailedItems    int                        `json:"failedItems"`
	StartTime      time.Time                  `json:"startTime"`
	Elapsed        time.Duration              `json:"elapsed"`
	LastSuccess    *models.LastSuccessfulSync `json:"lastSuccess,omitempty"`
	HasCheckpoint  bool                       `json:"hasCheckpoint"`
}

func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return (part*100 + whole/2) / whole
}

func (e *Engine) resetJob(id string, start time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.job = jobState{id: id, start: start, skip: make(map[string]struct{})}
}

// restore carries counters over from a checkpoint. Previously failed items
// are reported again but retried.
func (e *Engine) restore(cp models.Checkpoint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.job.phase = cp.Phase
	e.job.resumeToken = cp.ResumeToken
	e.job.processed = cp.ProcessedItems
	e.job.total = cp.TotalItems
	e.job.failed = slices.Clone(cp.FailedItems)
}

func (e *Engine) jobID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.id
}

func (e *Engine) addTotal(n int) {
	e.mu.Lock()
	e.job.total += n
	e.mu.Unlock()
}

func (e *Engine) addProcessed(n int) {
	e.mu.Lock()
	e.job.processed += n
	e.mu.Unlock()
	e.itemProgress()
}

func (e *Engine) markFailed(ids ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		if _, ok := e.job.skip[id]; ok {
			continue
		}
		e.job.skip[id] = struct{}{}
		if !slices.Contains(e.job.failed, id) {
			e.job.failed = append(e.job.failed, id)
		}
	}
}

func (e *Engine) skipped(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.job.skip[id]
	return ok
}

func (e *Engine) observe(t time.Time) {
	e.mu.Lock()
	if t.After(e.job.watermark) {
		e.job.watermark = t
	}
	e.mu.Unlock()
}

func (e *Engine) holdWatermark(t time.Time) {
	e.mu.Lock()
	if e.job.ceiling.IsZero() || t.Before(e.job.ceiling) {
		e.job.ceiling = t
	}
	e.mu.Unlock()
}

// lastSeen is the watermark to store after a successful job.
func (e *Engine) lastSeen() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	w := e.job.watermark
	if !e.job.ceiling.IsZero() && !w.Before(e.job.ceiling) {
		w = e.job.ceiling.Add(-time.Microsecond)
	}
	if !w.IsZero() && e.opts.SettleWindow > 0 {
		w = w.Add(-e.opts.SettleWindow)
	}
	return w
}

// beginPhase switches the checkpoint phase. token is the resume position
// the phase starts from.
func (e *Engine) beginPhase(phase models.Phase, token string) {
	e.mu.Lock()
	e.job.phase = phase
	e.job.resumeToken = token
	e.mu.Unlock()
	e.phaseProgress(phase, 0, 0)
}

func (e *Engine) phaseProgress(phase models.Phase, current, total int) {
	e.mu.Lock()
	p := events.PhasePayload{
		Phase:          string(phase),
		Current:        current,
		Total:          total,
		Percent:        percent(current, total),
		ProcessedItems: e.job.processed,
		TotalItems:     e.job.total,
	}
	e.mu.Unlock()
	e.events.Emit(events.SyncProgressUpdate, p)
}

// itemProgress emits at most one item event per ProgressInterval.
func (e *Engine) itemProgress() {
	now := e.clock.Now()
	e.mu.Lock()
	if !e.job.lastProgress.IsZero() && now.Sub(e.job.lastProgress) < e.opts.ProgressInterval {
		e.mu.Unlock()
		return
	}
	e.job.lastProgress = now
	p := events.ItemPayload{
		Processed:   e.job.processed,
		Total:       e.job.total,
		Percent:     percent(e.job.processed, e.job.total),
		ElapsedTime: now.Sub(e.job.start).Milliseconds(),
	}
	e.mu.Unlock()
	e.events.Emit(events.SyncItemProgress, p)
}

// saveResume records the resume position and persists a checkpoint with
// probability CheckpointProbability, which bounds checkpoint writes.
func (e *Engine) saveResume(ctx context.Context, phase models.Phase, token string) {
	e.mu.Lock()
	e.job.phase = phase
	e.job.resumeToken = token
	e.mu.Unlock()

	if e.rand() < e.opts.CheckpointProbability {
		e.saveCheckpoint(ctx)
	}
}

func (e *Engine) checkpoint() models.Checkpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	failed := slices.Clone(e.job.failed)
	if failed == nil {
		failed = []string{}
	}
	return models.Checkpoint{
		JobID:          e.job.id,
		Phase:          e.job.phase,
		ResumeToken:    e.job.resumeToken,
		ProcessedItems: e.job.processed,
		TotalItems:     e.job.total,
		FailedItems:    failed,
		Timestamp:      e.clock.Now().UTC(),
	}
}

func (e *Engine) saveCheckpoint(ctx context.Context) {
	cp := e.checkpoint()
	if err := metadata.SetJSON(context.WithoutCancel(ctx), e.meta, metadata.KeyPendingSyncJob, cp); err != nil {
		e.log.Error(ctx, "Failed to save sync checkpoint", "job", cp.JobID, "error", err)
	}
}

// Status reports the current job and the last successful one.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	e.mu.Lock()
	s := Status{
		InProgress:     e.running.Load(),
		JobID:          e.job.id,
		Phase:          e.job.phase,
		Progress:       percent(e.job.processed, e.job.total),
		ProcessedItems: e.job.processed,
		TotalItems:     e.job.total,
		FailedItems:    len(e.job.failed),
		StartTime:      e.job.start,
	}
	e.mu.Unlock()
	if s.InProgress && !s.StartTime.IsZero() {
		s.Elapsed = e.clock.Now().Sub(s.StartTime)
	}

	var last models.LastSuccessfulSync
	found, err := metadata.GetJSON(ctx, e.meta, metadata.KeyLastSuccessfulSync, &last)
	if err != nil {
		return s, err
	}
	if found {
		s.LastSuccess = &last
	}

	raw, err := e.meta.Get(ctx, metadata.KeyPendingSyncJob)
	if err != nil {
		return s, err
	}
	s.HasCheckpoint = raw != nil
	return s, nil
}
