// Package scheduler turns keystroke-level content changes into two
// cadences: frequent local saves and infrequent cloud syncs.
//
// Local saves are debounced. Cloud syncs are scheduled by a set of
// heuristics on change size, edit count and elapsed time, with a hard
// maximum delay as a backstop. After each successful cloud sync the
// debounce windows are retuned from the observed editing rhythm.
package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/01011010/notesum-hybrid/internal/client/syncer"
	"github.com/01011010/notesum-hybrid/internal/events"
	"github.com/01011010/notesum-hybrid/internal/logging"
	"github.com/01011010/notesum-hybrid/internal/models"
	"github.com/01011010/notesum-hybrid/internal/timex"
)

// Store persists page content locally.
type Store interface {
	SavePage(ctx context.Context, id, content string) (*models.Page, error)
	DeletePage(ctx context.Context, id string) error
	ListPages(ctx context.Context) ([]models.Page, error)
	ListPending(ctx context.Context) ([]models.Page, error)
}

// Syncer pushes local changes to the remote store.
type Syncer interface {
	Sync(ctx context.Context, req syncer.Request) syncer.Result
}

type Config struct {
	LocalSaveDelay             time.Duration
	CloudSyncDelay             time.Duration
	MaxSyncDelay               time.Duration
	MinChangeThreshold         int
	SignificantChangeThreshold int
	AdaptiveTiming             bool
	CollectMetrics             bool
	ActivityInterval           time.Duration
	IdleAfter                  time.Duration
	HistoryLimit               int
}

func DefaultConfig() Config {
	return Config{
		LocalSaveDelay:             5 * time.Second,
		CloudSyncDelay:             30 * time.Second,
		MaxSyncDelay:               5 * time.Minute,
		MinChangeThreshold:         10,
		SignificantChangeThreshold: 100,
		AdaptiveTiming:             true,
		CollectMetrics:             true,
		ActivityInterval:           5 * time.Second,
		IdleAfter:                  time.Minute,
		HistoryLimit:               100,
	}
}

// ChangeMetrics describes one content change against the last saved
// snapshot.
type ChangeMetrics struct {
	HasChanged    bool
	ChangeSize    int
	IsSignificant bool
}

// ChangeResult reports what HandleContentChange scheduled.
type ChangeResult struct {
	SavedLocally     bool `json:"savedLocally"`
	ScheduledForSync bool `json:"scheduledForSync"`
}

type Timing struct {
	LocalSaveDelay time.Duration `json:"localSaveDelay"`
	CloudSyncDelay time.Duration `json:"cloudSyncDelay"`
	MaxSyncDelay   time.Duration `json:"maxSyncDelay"`
}

type Metrics struct {
	LastLocalSave      time.Time     `json:"lastLocalSave"`
	LastCloudSync      time.Time     `json:"lastCloudSync"`
	PendingChanges     bool          `json:"pendingChanges"`
	ConsecutiveChanges int           `json:"consecutiveChanges"`
	UserPatterns       Patterns      `json:"userPatterns"`
	Timing             Timing        `json:"timing"`
	ActiveTime         time.Duration `json:"editorActiveTime"`
	InactiveTime       time.Duration `json:"editorInactiveTime"`
}

// ErrSyncFailed is returned when the sync engine did not complete a push.
var ErrSyncFailed = errors.New("cloud sync failed")

type SmartSync struct {
	store  Store
	syncer Syncer
	events events.Emitter
	clock  timex.Clock
	log    logging.Logger

	local *debouncer
	cloud *debouncer

	mu   sync.Mutex
	cfg  Config
	st   state
	max  timex.Timer
	tick timex.Timer
	// pushed holds pages that reached the remote store at least once.
	pushed map[string]struct{}
}

type state struct {
	hasContent     bool
	lastContent    string
	lastLocalSave  time.Time
	lastCloudSync  time.Time
	pendingSince   time.Time
	pendingChanges bool
	syncScheduled  bool
	forceScheduled bool
	consecutive    int
	history        []change
	patterns       Patterns
	activeTime     time.Duration
	inactiveTime   time.Duration
	lastActivity   time.Time
	currentPage    string
	latestContent  string
	closed         bool
}

// New creates a SmartSync. emitter, clock and log may be nil.
func New(cfg Config, store Store, s Syncer, emitter events.Emitter, clock timex.Clock, log logging.Logger) *SmartSync {
	if emitter == nil {
		emitter = events.Nop{}
	}
	if clock == nil {
		clock = timex.Real()
	}
	if log == nil {
		log = logging.Discard()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	if cfg.ActivityInterval <= 0 {
		cfg.ActivityInterval = DefaultConfig().ActivityInterval
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = DefaultConfig().IdleAfter
	}
	return &SmartSync{
		store:  store,
		syncer: s,
		events: emitter,
		clock:  clock,
		log:    log.With("module", "smart_sync"),
		local:  newDebouncer(clock),
		cloud:  newDebouncer(clock),
		cfg:    cfg,
		st:     state{lastActivity: clock.Now()},
		pushed: make(map[string]struct{}),
	}
}

// Run tracks editor activity until ctx is cancelled, then stops every timer.
func (s *SmartSync) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

// Start begins periodic activity tracking.
func (s *SmartSync) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.closed = false
	s.scheduleTickLocked()
}

// Stop cancels every pending timer without flushing.
func (s *SmartSync) Stop() {
	s.local.cancel()
	s.cloud.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.closed = true
	s.stopTimersLocked()
}

func (s *SmartSync) stopTimersLocked() {
	if s.tick != nil {
		s.tick.Stop()
		s.tick = nil
	}
	if s.max != nil {
		s.max.Stop()
		s.max = nil
	}
	s.st.forceScheduled = false
}

func (s *SmartSync) scheduleTickLocked() {
	s.tick = s.clock.AfterFunc(s.cfg.ActivityInterval, s.trackActivity)
}

// trackActivity accumulates active and idle editor time. When the user has
// gone idle with unsynced changes the scheduled cloud sync runs at once.
func (s *SmartSync) trackActivity() {
	s.mu.Lock()
	if s.st.closed {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	flush := false
	if now.Sub(s.st.lastActivity) < s.cfg.IdleAfter {
		s.st.activeTime += s.cfg.ActivityInterval
	} else {
		s.st.inactiveTime += s.cfg.ActivityInterval
		flush = s.st.activeTime > 0 && s.st.pendingChanges
	}
	s.scheduleTickLocked()
	s.mu.Unlock()

	if flush && s.cloud.flush() {
		s.log.Debug(context.Background(), "Editor idle, flushed pending cloud sync")
	}
}

// Measure compares content with the last saved snapshot. Without a
// snapshot every change is significant.
func (s *SmartSync) Measure(content string) ChangeMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.measureLocked(content)
}

func (s *SmartSync) measureLocked(content string) ChangeMetrics {
	if !s.st.hasContent {
		return ChangeMetrics{HasChanged: true, ChangeSize: len(content), IsSignificant: true}
	}
	size := len(content) - len(s.st.lastContent)
	if size < 0 {
		size = -size
	}
	return ChangeMetrics{
		HasChanged:    content != s.st.lastContent,
		ChangeSize:    size,
		IsSignificant: size >= s.cfg.SignificantChangeThreshold,
	}
}

// HandleContentChange records an edit of pageID and schedules the local
// save and, when warranted, the cloud sync.
func (s *SmartSync) HandleContentChange(ctx context.Context, pageID, content string) ChangeResult {
	s.mu.Lock()
	now := s.clock.Now()
	s.st.lastActivity = now
	m := s.measureLocked(content)

	if !s.st.pendingChanges {
		s.st.pendingSince = now
	}
	s.st.pendingChanges = true
	s.st.consecutive++
	s.st.currentPage = pageID
	s.st.latestContent = content

	localDelay := s.cfg.LocalSaveDelay
	cloudDelay := s.cfg.CloudSyncDelay
	if m.HasChanged && s.cfg.CollectMetrics {
		var since time.Duration
		if !s.st.lastLocalSave.IsZero() {
			since = now.Sub(s.st.lastLocalSave)
		}
		s.st.history = append(s.st.history, change{At: now, Size: m.ChangeSize, SinceLastSave: since})
		if len(s.st.history) > s.cfg.HistoryLimit {
			s.st.history = s.st.history[len(s.st.history)-s.cfg.HistoryLimit:]
		}
	}
	push := s.shouldCloudSyncLocked(m, now)
	if push {
		s.st.syncScheduled = true
	}
	s.ensureMaxDelayLocked(now)
	s.mu.Unlock()

	if m.HasChanged {
		s.local.schedule(localDelay, func() {
			_ = s.localSave(context.WithoutCancel(ctx), pageID, content)
		})
	}
	if push {
		s.cloud.schedule(cloudDelay, func() {
			_ = s.cloudSync(context.WithoutCancel(ctx), pageID)
		})
	}
	return ChangeResult{SavedLocally: m.HasChanged, ScheduledForSync: push}
}

func (s *SmartSync) shouldCloudSyncLocked(m ChangeMetrics, now time.Time) bool {
	if m.IsSignificant {
		return true
	}
	if m.ChangeSize < s.cfg.MinChangeThreshold {
		return false
	}
	if s.st.lastCloudSync.IsZero() || now.Sub(s.st.lastCloudSync) > 2*s.cfg.CloudSyncDelay {
		return true
	}
	if s.st.consecutive > 10 {
		return true
	}
	if s.cfg.AdaptiveTiming && s.st.patterns.SessionCount > 5 &&
		float64(s.st.consecutive) > s.st.patterns.AvgSessionLength*0.8 {
		return true
	}
	return false
}

// ensureMaxDelayLocked arms the backstop that pushes pending changes once
// MaxSyncDelay has passed since the last push, or since the first pending
// change when nothing was pushed yet.
func (s *SmartSync) ensureMaxDelayLocked(now time.Time) {
	if s.st.forceScheduled || !s.st.pendingChanges {
		return
	}
	ref := s.st.lastCloudSync
	if ref.IsZero() {
		ref = s.st.pendingSince
	}
	wait := max(0, s.cfg.MaxSyncDelay-now.Sub(ref))
	s.st.forceScheduled = true
	s.max = s.clock.AfterFunc(wait, func() {
		s.mu.Lock()
		s.st.forceScheduled = false
		s.max = nil
		page := s.st.currentPage
		pending := s.st.pendingChanges
		s.mu.Unlock()
		if pending {
			s.log.Info(context.Background(), "Maximum sync delay reached, forcing cloud sync", "page", page)
			_ = s.cloudSync(context.Background(), page)
		}
	})
}

func (s *SmartSync) localSave(ctx context.Context, pageID, content string) error {
	if _, err := s.store.SavePage(ctx, pageID, content); err != nil {
		s.log.Error(ctx, "Local save failed", "page", pageID, "error", err)
		return fmt.Errorf("failed to save page locally: %w", err)
	}
	s.mu.Lock()
	s.st.hasContent = true
	s.st.lastContent = content
	s.st.lastLocalSave = s.clock.Now()
	s.mu.Unlock()
	s.log.Debug(ctx, "Page saved locally", "page", pageID)
	return nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:8])
}

// cloudSync runs the sync engine for pageID. A pending local save goes
// first so the engine sees the latest content.
func (s *SmartSync) cloudSync(ctx context.Context, pageID string) error {
	s.local.flush()

	s.mu.Lock()
	_, pushed := s.pushed[pageID]
	meta := map[string]any{
		"operation":      "update",
		"localTimestamp": s.st.lastCloudSync.UnixMilli(),
		"contentHash":    contentHash(s.st.latestContent),
		"contentLength":  len(s.st.latestContent),
		"isFirstSync":    !pushed,
	}
	s.mu.Unlock()

	res := s.syncer.Sync(ctx, syncer.Request{PageID: pageID, Metadata: meta})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.syncScheduled = false
	if !res.Success {
		s.log.Warn(ctx, "Cloud sync did not complete", "page", pageID, "reason", res.Reason, "error", res.Err)
		if res.Err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSyncFailed, res.Reason, res.Err)
		}
		return fmt.Errorf("%w: %s", ErrSyncFailed, res.Reason)
	}

	s.st.lastCloudSync = s.clock.Now()
	s.st.pendingChanges = false
	s.st.consecutive = 0
	if pageID != "" {
		s.pushed[pageID] = struct{}{}
	}
	if s.max != nil {
		s.max.Stop()
		s.max = nil
	}
	s.st.forceScheduled = false
	if s.cfg.AdaptiveTiming {
		s.adaptLocked()
	}
	return nil
}

func (s *SmartSync) adaptLocked() {
	p, ok := learnPatterns(s.st.history)
	if !ok {
		return
	}
	s.st.patterns = p
	local, cloud := retune(p, s.cfg.LocalSaveDelay, s.cfg.CloudSyncDelay)
	if local != s.cfg.LocalSaveDelay || cloud != s.cfg.CloudSyncDelay {
		s.log.Debug(context.Background(), "Sync timing retuned", "local", local, "cloud", cloud, "sessions", p.SessionCount)
	}
	s.cfg.LocalSaveDelay = local
	s.cfg.CloudSyncDelay = cloud
}

// Metrics returns the current scheduler state.
func (s *SmartSync) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Metrics{
		LastLocalSave:      s.st.lastLocalSave,
		LastCloudSync:      s.st.lastCloudSync,
		PendingChanges:     s.st.pendingChanges,
		ConsecutiveChanges: s.st.consecutive,
		UserPatterns:       s.st.patterns,
		Timing: Timing{
			LocalSaveDelay: s.cfg.LocalSaveDelay,
			CloudSyncDelay: s.cfg.CloudSyncDelay,
			MaxSyncDelay:   s.cfg.MaxSyncDelay,
		},
		ActiveTime:   s.st.activeTime,
		InactiveTime: s.st.inactiveTime,
	}
}
