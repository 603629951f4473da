package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/01011010/notesum-hybrid/internal/client/syncer"
	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/events"
	"github.com/01011010/notesum-hybrid/internal/models"
)

// Progress statuses of SyncAll items.
const (
	StatusProcessing = "processing"
	StatusSkipped    = "skipped"
	StatusSynced     = "synced"
	StatusFailed     = "failed"
	StatusLocalSaved = "local-saved"
	StatusError      = "error"
)

// ForceSync cancels pending timers, saves content and syncs it right away.
func (s *SmartSync) ForceSync(ctx context.Context, pageID, content string) error {
	s.local.cancel()
	s.cloud.cancel()

	s.mu.Lock()
	s.st.currentPage = pageID
	s.st.latestContent = content
	s.mu.Unlock()

	if err := s.localSave(ctx, pageID, content); err != nil {
		return err
	}
	return s.cloudSync(ctx, pageID)
}

// PrepareClose flushes pending work for the open page and stops every
// timer. The scheduler can be restarted with Start.
func (s *SmartSync) PrepareClose(ctx context.Context, pageID, content string) error {
	s.local.cancel()
	s.cloud.cancel()

	s.mu.Lock()
	pending := s.st.pendingChanges
	s.mu.Unlock()

	var err error
	if pending && pageID != "" {
		if err = s.localSave(ctx, pageID, content); err == nil {
			err = s.cloudSync(ctx, pageID)
		}
	}

	s.mu.Lock()
	s.st.closed = true
	s.stopTimersLocked()
	s.mu.Unlock()
	return err
}

// HandlePageDeletion drops bookkeeping for pageID, deletes it locally and
// pushes the deletion.
func (s *SmartSync) HandlePageDeletion(ctx context.Context, pageID string) error {
	s.mu.Lock()
	if s.st.currentPage == pageID {
		s.st.pendingChanges = false
		s.st.syncScheduled = false
		s.st.hasContent = false
		s.st.lastContent = ""
		s.st.latestContent = ""
		if s.max != nil {
			s.max.Stop()
			s.max = nil
		}
		s.st.forceScheduled = false
	}
	s.mu.Unlock()
	s.local.cancel()
	s.cloud.cancel()

	if err := s.store.DeletePage(ctx, pageID); err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to delete page locally: %w", err)
	}

	res := s.syncer.Sync(ctx, syncer.Request{
		PageID:   pageID,
		IsDelete: true,
		Metadata: map[string]any{
			"operation": "delete",
			"timestamp": s.clock.Now().UnixMilli(),
		},
	})

	s.mu.Lock()
	delete(s.pushed, pageID)
	s.mu.Unlock()

	if !res.Success {
		if res.Err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSyncFailed, res.Reason, res.Err)
		}
		return fmt.Errorf("%w: %s", ErrSyncFailed, res.Reason)
	}
	return nil
}

type SyncAllOptions struct {
	// ForceAll syncs every page instead of only pending ones.
	ForceAll bool
	// LocalOnly saves locally without pushing.
	LocalOnly bool
}

type ItemResult struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

type SyncAllResult struct {
	Success   bool                  `json:"success"`
	Total     int                   `json:"total"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Skipped   int                   `json:"skipped"`
	Details   map[string]ItemResult `json:"details"`
}

// SyncAll saves and pushes every pending page, or every page with ForceAll.
// A failing page does not stop the others; progress is emitted per page.
func (s *SmartSync) SyncAll(ctx context.Context, opts SyncAllOptions) (SyncAllResult, error) {
	s.local.cancel()
	s.cloud.cancel()

	var (
		list []models.Page
		err  error
	)
	if opts.ForceAll {
		list, err = s.store.ListPages(ctx)
	} else {
		list, err = s.store.ListPending(ctx)
	}
	if err != nil {
		s.log.Error(ctx, "Global sync failed", "error", err)
		s.events.Emit(events.SyncError, events.ErrorPayload{Error: err.Error()})
		return SyncAllResult{Failed: 1, Details: map[string]ItemResult{}}, fmt.Errorf("failed to list pages: %w", err)
	}

	res := SyncAllResult{Total: len(list), Details: make(map[string]ItemResult, len(list))}
	emit := func(status, pageID string, processed int, errMsg string) {
		s.events.Emit(events.SyncProgress, events.ProgressPayload{
			Status:    status,
			PageID:    pageID,
			Processed: processed,
			Total:     res.Total,
			Error:     errMsg,
		})
	}

	for i, p := range list {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		emit(StatusProcessing, p.ID, i, "")

		if p.Content == "" && !opts.ForceAll {
			res.Skipped++
			res.Details[p.ID] = ItemResult{Status: StatusSkipped, Reason: "no content"}
			emit(StatusSkipped, p.ID, i+1, "")
			continue
		}

		if err := s.localSave(ctx, p.ID, p.Content); err != nil {
			res.Failed++
			res.Details[p.ID] = ItemResult{Status: StatusFailed, Error: err.Error()}
			emit(StatusError, p.ID, i+1, err.Error())
			continue
		}

		if opts.LocalOnly {
			res.Succeeded++
			res.Details[p.ID] = ItemResult{Status: "local-only-success"}
			emit(StatusLocalSaved, p.ID, i+1, "")
			continue
		}

		s.mu.Lock()
		s.st.latestContent = p.Content
		s.mu.Unlock()
		if err := s.cloudSync(ctx, p.ID); err != nil {
			res.Failed++
			res.Details[p.ID] = ItemResult{Status: StatusFailed, Error: err.Error()}
			emit(StatusFailed, p.ID, i+1, err.Error())
			continue
		}
		res.Succeeded++
		res.Details[p.ID] = ItemResult{Status: "success"}
		emit(StatusSynced, p.ID, i+1, "")
	}

	res.Success = res.Failed == 0
	return res, nil
}
