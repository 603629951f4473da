package syncer

import (
	"time"

	"github.com/01011010/notesum-hybrid/internal/models"
)

// MergeTolerance is how far apart local and remote modification times may
// be before the two versions are treated as diverged.
const MergeTolerance = 60 * time.Second

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// ShouldMerge reports whether the downloaded remote version has to be
// merged into the local page. remoteContent is the decrypted remote body.
func ShouldMerge(local models.Page, remote models.RemotePage, remoteContent string) bool {
	differs := local.Content != remoteContent ||
		local.Name != remote.Name ||
		local.Order != remote.Order

	if local.PendingSync {
		return differs
	}
	if absDuration(local.LastModified.Sub(remote.LastModified)) > MergeTolerance {
		return true
	}
	return differs
}

// Merge resolves local against remote.
//
// When remote is strictly newer its name and order win. Its content wins
// too unless the local page has unpushed edits, in which case the longer
// body is kept and the page is queued for upload again. When local is newer
// or equal its content stays and remote name or order changes are adopted
// and queued for upload.
//
// The result is marked merged. A page left pending always has LastModified
// after LastSynced; now is used to restore that when needed.
func Merge(local models.Page, remote models.RemotePage, remoteContent string, now time.Time) models.Page {
	m := local

	if remote.LastModified.After(local.LastModified) {
		if local.PendingSync {
			if remoteContent != local.Content {
				if len(remoteContent) > len(local.Content) {
					m.Content = remoteContent
				}
				m.PendingSync = true
			}
		} else {
			m.Content = remoteContent
		}
		m.Name = remote.Name
		m.Order = remote.Order
		m.LastModified = remote.LastModified
	} else {
		if remote.Name != "" && remote.Name != local.Name {
			m.Name = remote.Name
			m.PendingSync = true
		}
		if remote.Order != local.Order {
			m.Order = remote.Order
			m.PendingSync = true
		}
	}

	if m.PendingSync {
		if !m.LastSynced.IsZero() && !m.LastModified.After(m.LastSynced) {
			m.LastModified = now
		}
	} else {
		m.LastSynced = now
	}
	m.SyncStatus = models.SyncStatusMerged
	return m
}
