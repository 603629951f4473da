package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/01011010/notesum-hybrid/internal/client/scheduler"
	"github.com/01011010/notesum-hybrid/internal/client/syncer"
	"github.com/01011010/notesum-hybrid/internal/filex"
	"github.com/01011010/notesum-hybrid/internal/netx"
)

func printSyncResult(res syncer.Result) {
	if res.Success {
		msg := fmt.Sprintf("Sync complete: %d items in %s", res.Stats.TotalProcessed, res.Stats.Duration.Round(time.Millisecond))
		if n := len(res.Stats.FailedItems); n > 0 {
			msg += fmt.Sprintf(", %d failed (see 'errors')", n)
		}
		printlnFn(msg)
		return
	}
	switch res.Reason {
	case syncer.ReasonNotAuthenticated:
		printlnFn("Not signed in. Use 'token <jwt>' first.")
	case syncer.ReasonVaultLocked:
		printlnFn("Vault is locked. Use 'unlock' first.")
	case syncer.ReasonInProgress:
		printlnFn("A sync is already running.")
	default:
		printlnFn("Sync did not complete:", res.Reason, res.Err)
	}
}

// Sync pushes the open page right away, or runs a full sync when no page
// is open.
func (a *App) Sync(ctx context.Context) error {
	if p := a.currentPage(); p != nil {
		if err := a.smart.ForceSync(ctx, p.id, p.content()); err != nil {
			printlnFn("Sync failed:", err)
			return err
		}
		printlnFn("Page synced.")
		return nil
	}

	res := a.engine.Sync(ctx, syncer.Request{})
	printSyncResult(res)
	return res.Err
}

func (a *App) SyncAll(ctx context.Context, opts scheduler.SyncAllOptions) error {
	if p := a.currentPage(); p != nil {
		if _, err := a.notes.SavePage(ctx, p.id, p.content()); err != nil {
			printlnFn("Failed to save open page:", err)
			return err
		}
	}

	res, err := a.smart.SyncAll(ctx, opts)
	if err != nil {
		printlnFn("Sync failed:", err)
		return err
	}
	printlnFn(fmt.Sprintf("Pages: %d, synced: %d, failed: %d, skipped: %d",
		res.Total, res.Succeeded, res.Failed, res.Skipped))

	ids := make([]string, 0, len(res.Details))
	for id := range res.Details {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		d := res.Details[id]
		if d.Status == scheduler.StatusFailed || d.Status == scheduler.StatusError {
			printlnFn(fmt.Sprintf("  %s %s %s%s", shortID(id), d.Status, d.Reason, d.Error))
		}
	}
	return nil
}

func (a *App) Abort(ctx context.Context) error {
	if a.engine.Abort() {
		printlnFn("Abort requested; the job stops at its next checkpoint.")
	} else {
		printlnFn("No sync is running.")
	}
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st, err := a.engine.Status(ctx)
	if err != nil {
		printlnFn("Failed to read sync status:", err)
		return err
	}

	user, ok := a.userID()
	if !ok {
		user = "-"
	}
	printlnFn(fmt.Sprintf("Mode: %s  User: %s  Vault unlocked: %t", a.Mode(), user, a.vault.IsUnlocked()))

	if st.InProgress {
		printlnFn(fmt.Sprintf("Sync %s: %s %d%% (%d/%d, %d failed, %s)", st.JobID, st.Phase,
			st.Progress, st.ProcessedItems, st.TotalItems, st.FailedItems, st.Elapsed.Round(time.Second)))
	}
	if st.LastSuccess != nil {
		printlnFn(fmt.Sprintf("Last sync: %s (%d items, %s)", st.LastSuccess.Timestamp.Local().Format(time.DateTime),
			st.LastSuccess.ItemsProcessed, st.LastSuccess.Duration.Round(time.Millisecond)))
	} else {
		printlnFn("Last sync: never")
	}
	if st.HasCheckpoint {
		printlnFn("An interrupted sync will resume on the next run.")
	}

	pending, err := a.notes.ListPending(ctx)
	if err != nil {
		return err
	}
	m := a.smart.Metrics()
	printlnFn(fmt.Sprintf("Pending pages: %d  Unsaved edits: %t  Save delay: %s  Sync delay: %s",
		len(pending), m.PendingChanges, m.Timing.LocalSaveDelay, m.Timing.CloudSyncDelay))
	return nil
}

func (a *App) Errors(ctx context.Context) error {
	records, err := a.engine.ErrorLog(ctx)
	if err != nil {
		printlnFn("Failed to read error log:", err)
		return err
	}
	if len(records) == 0 {
		printlnFn("No sync errors.")
		return nil
	}
	for _, r := range records {
		doc := r.DocumentID
		if doc == "" {
			doc = "-"
		}
		printlnFn(fmt.Sprintf("%s  %-20s %-10s %s", r.Timestamp.Local().Format(time.DateTime), r.Operation, shortID(doc), r.Message))
	}
	return nil
}

// Export asks the server for an encrypted snapshot of every page and, when
// path is set, downloads it there.
func (a *App) Export(ctx context.Context, path string) error {
	if _, ok := a.userID(); !ok {
		printlnFn("Not signed in. Use 'token <jwt>' first.")
		return nil
	}
	resp, err := a.remote.ExportSnapshot(ctx)
	if err != nil {
		printlnFn("Export failed:", err)
		return err
	}
	printlnFn(fmt.Sprintf("Snapshot of %d pages: %s", resp.Pages, resp.URL))
	if path == "" {
		printlnFn("Link expires", resp.ExpiresAt.Local().Format(time.DateTime))
		return nil
	}

	if err := filex.EnsureParentDir(path); err != nil {
		printlnFn("Export failed:", err)
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		printlnFn("Export failed:", err)
		return err
	}
	n, err := netx.DownloadPresigned(ctx, resp.URL, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		a.log.Error(ctx, "Snapshot download failed", "key", resp.Key, "error", err)
		printlnFn("Download failed:", err)
		return err
	}
	printlnFn(fmt.Sprintf("Saved %d bytes to %s", n, path))
	return nil
}
