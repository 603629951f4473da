package syncer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/cryptox"
	"github.com/01011010/notesum-hybrid/internal/models"
	"github.com/01011010/notesum-hybrid/internal/rpc"
)

// now returns the local clock at the precision the page store keeps.
func (e *Engine) now() time.Time {
	return e.clock.Now().UTC().Truncate(time.Millisecond)
}

// key borrows the content key for one unit of work. The caller wipes it.
func (e *Engine) key() ([]byte, error) {
	k, ok := e.keys.Key()
	if !ok {
		e.aborted.Store(true)
		return nil, errAborted
	}
	return k, nil
}

// applyTombstones deletes local copies of pages deleted remotely since the
// last sync. Failing to fetch tombstones does not fail the job.
func (e *Engine) applyTombstones(ctx context.Context, since time.Time) error {
	e.beginPhase(models.PhaseDownloading, "")

	cursor := ""
	for {
		if err := e.checkpointSafe(ctx); err != nil {
			return err
		}

		var list []models.Tombstone
		var next string
		err := e.withRetry(ctx, "download_tombstones", func(ctx context.Context) error {
			var err error
			list, next, err = e.remote.QueryTombstones(ctx, since, cursor, e.opts.PageSize)
			return err
		})
		if err != nil {
			if e.aborted.Load() || ctx.Err() != nil {
				return e.checkpointSafe(ctx)
			}
			e.logError(ctx, "download_tombstones", "", err)
			return nil
		}

		for _, t := range list {
			e.observe(t.DeletedAt)
			removed, err := e.applyTombstone(ctx, t)
			if err != nil {
				e.logError(ctx, "apply_tombstone", t.PageID, err)
				continue
			}
			if removed {
				e.addProcessed(1)
			}
		}

		if next == "" || len(list) == 0 {
			return nil
		}
		cursor = next
	}
}

func (e *Engine) applyTombstone(ctx context.Context, t models.Tombstone) (bool, error) {
	_, err := e.pages.Get(ctx, t.PageID)
	if errors.Is(err, common.ErrNotFound) {
		return false, e.pages.ClearDeleted(ctx, []string{t.PageID})
	}
	if err != nil {
		return false, err
	}
	if err := e.pages.Delete(ctx, t.PageID); err != nil {
		return false, err
	}
	return true, e.pages.ClearDeleted(ctx, []string{t.PageID})
}

// upload pushes pending pages with an id after cursor, one atomic batch at
// a time.
func (e *Engine) upload(ctx context.Context, cursor string) error {
	e.beginPhase(models.PhaseUploading, cursor)

	var (
		pending []models.Page
		err     error
	)
	if cursor == "" {
		pending, err = e.pages.ListPending(ctx)
	} else {
		pending, err = e.pages.ListPendingAfter(ctx, cursor)
	}
	if err != nil {
		return fmt.Errorf("failed to list pending pages: %w", err)
	}
	pending = slices.DeleteFunc(pending, func(p models.Page) bool { return e.skipped(p.ID) })
	if len(pending) == 0 {
		return nil
	}
	e.addTotal(len(pending))

	done := 0
	for batch := range slices.Chunk(pending, e.opts.BatchSize) {
		if err := e.checkpointSafe(ctx); err != nil {
			return err
		}
		if err := e.uploadBatch(ctx, batch); err != nil {
			return err
		}
		done += len(batch)
		e.phaseProgress(models.PhaseUploading, done, len(pending))
		e.saveResume(ctx, models.PhaseUploading, batch[len(batch)-1].ID)
	}
	return nil
}

func (e *Engine) uploadBatch(ctx context.Context, batch []models.Page) error {
	key, err := e.key()
	if err != nil {
		return err
	}
	defer cryptox.Wipe(key)

	remote := make([]models.RemotePage, 0, len(batch))
	uploaded := make([]models.Page, 0, len(batch))
	for _, p := range batch {
		ciphertext, err := cryptox.Encrypt(key, []byte(p.Content))
		if err != nil {
			e.markFailed(p.ID)
			e.logError(ctx, "encrypt", p.ID, err)
			continue
		}
		remote = append(remote, models.RemotePage{
			ID:           p.ID,
			Name:         p.Name,
			Order:        p.Order,
			Content:      ciphertext,
			IsEncrypted:  true,
			CreatedAt:    p.CreatedAt,
			LastModified: p.LastModified,
		})
		uploaded = append(uploaded, p)
	}
	if len(remote) == 0 {
		return nil
	}

	var stamp time.Time
	err = e.withRetry(ctx, "upload_batch", func(ctx context.Context) error {
		var err error
		stamp, err = e.remote.BatchWrite(ctx, remote, nil)
		return err
	})
	if err != nil {
		ids := make([]string, len(uploaded))
		for i, p := range uploaded {
			ids[i] = p.ID
		}
		e.markFailed(ids...)
		if ferr := e.pages.MarkFailed(context.WithoutCancel(ctx), ids); ferr != nil {
			e.log.Warn(ctx, "Failed to flag pages", "error", ferr)
		}
		return fmt.Errorf("failed to upload batch: %w", err)
	}

	e.observe(stamp)
	if err := e.pages.MarkSynced(ctx, uploaded, e.now()); err != nil {
		return err
	}
	e.addProcessed(len(uploaded))
	return nil
}

// pushDeletions removes locally deleted pages remotely. Ids leave the
// deletion set only once their batch is committed.
func (e *Engine) pushDeletions(ctx context.Context, cursor string) error {
	e.beginPhase(models.PhaseDeleting, cursor)

	var (
		ids []string
		err error
	)
	if cursor == "" {
		ids, err = e.pages.ListDeleted(ctx)
	} else {
		ids, err = e.pages.ListDeletedAfter(ctx, cursor)
	}
	if err != nil {
		return fmt.Errorf("failed to list deleted pages: %w", err)
	}
	ids = slices.DeleteFunc(ids, e.skipped)
	if len(ids) == 0 {
		return nil
	}
	e.addTotal(len(ids))

	done := 0
	for batch := range slices.Chunk(ids, e.opts.BatchSize) {
		if err := e.checkpointSafe(ctx); err != nil {
			return err
		}

		var stamp time.Time
		err := e.withRetry(ctx, "delete_batch", func(ctx context.Context) error {
			var err error
			stamp, err = e.remote.BatchWrite(ctx, nil, batch)
			return err
		})
		if err != nil {
			e.markFailed(batch...)
			return fmt.Errorf("failed to push deletions: %w", err)
		}
		e.observe(stamp)

		if err := e.pages.ClearDeleted(ctx, batch); err != nil {
			return err
		}
		e.addProcessed(len(batch))
		done += len(batch)
		e.phaseProgress(models.PhaseDeleting, done, len(ids))
		e.saveResume(ctx, models.PhaseDeleting, batch[len(batch)-1])
	}
	return nil
}

// download pulls pages changed remotely since the last sync, starting after
// token.
func (e *Engine) download(ctx context.Context, since time.Time, token string) error {
	e.beginPhase(models.PhaseDownloading, token)

	deleted, err := e.pages.ListDeleted(ctx)
	if err != nil {
		return fmt.Errorf("failed to list deleted pages: %w", err)
	}

	cursor := token
	for {
		if err := e.checkpointSafe(ctx); err != nil {
			return err
		}

		var list []models.RemotePage
		var next string
		err := e.withRetry(ctx, "download_pages", func(ctx context.Context) error {
			var err error
			list, next, err = e.remote.QueryPages(ctx, since, cursor, e.opts.PageSize)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to download pages: %w", err)
		}
		e.addTotal(len(list))

		done := 0
		for batch := range slices.Chunk(list, e.opts.BatchSize) {
			if err := e.checkpointSafe(ctx); err != nil {
				return err
			}
			if err := e.downloadBatch(ctx, batch, deleted); err != nil {
				return err
			}
			done += len(batch)
			e.phaseProgress(models.PhaseDownloading, done, len(list))

			last := batch[len(batch)-1]
			e.saveResume(ctx, models.PhaseDownloading, rpc.Cursor{At: last.SyncedAt, ID: last.ID}.Encode())
		}

		if next == "" || len(list) == 0 {
			return nil
		}
		cursor = next
	}
}

func (e *Engine) downloadBatch(ctx context.Context, batch []models.RemotePage, deleted []string) error {
	key, err := e.key()
	if err != nil {
		return err
	}
	defer cryptox.Wipe(key)

	for _, r := range batch {
		if e.skipped(r.ID) || slices.Contains(deleted, r.ID) {
			e.observe(r.SyncedAt)
			continue
		}
		changed, err := e.applyRemote(ctx, key, r)
		if err != nil {
			e.markFailed(r.ID)
			e.holdWatermark(r.SyncedAt)
			e.logError(ctx, "download_page", r.ID, err)
			continue
		}
		e.observe(r.SyncedAt)
		if changed {
			e.addProcessed(1)
		}
	}
	return nil
}

// applyRemote stores one downloaded page and reports whether the local copy
// changed.
func (e *Engine) applyRemote(ctx context.Context, key []byte, r models.RemotePage) (bool, error) {
	content := r.Content
	if r.IsEncrypted {
		plain, err := cryptox.Decrypt(key, r.Content)
		if err != nil {
			return false, fmt.Errorf("failed to decrypt page: %w", err)
		}
		content = string(plain)
	}

	local, err := e.pages.Get(ctx, r.ID)
	if errors.Is(err, common.ErrNotFound) {
		p := &models.Page{
			ID:           r.ID,
			Name:         r.Name,
			Order:        r.Order,
			Content:      content,
			CreatedAt:    r.CreatedAt,
			LastModified: r.LastModified,
			LastSynced:   e.now(),
			IsEncrypted:  r.IsEncrypted,
			SyncStatus:   models.SyncStatusSynced,
		}
		return true, e.pages.Upsert(ctx, p)
	}
	if err != nil {
		return false, err
	}

	if !ShouldMerge(*local, r, content) {
		return false, nil
	}
	merged := Merge(*local, r, content, e.now())
	return true, e.pages.Upsert(ctx, &merged)
}
