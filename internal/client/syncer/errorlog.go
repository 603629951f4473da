package syncer

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/01011010/notesum-hybrid/internal/client/repositories/metadata"
	"github.com/01011010/notesum-hybrid/internal/models"
)

// errorRing keeps the newest limit records, evicting the oldest first.
type errorRing struct {
	mu    sync.Mutex
	buf   []models.ErrorRecord
	next  int
	full  bool
	limit int
}

func newErrorRing(limit int) *errorRing {
	return &errorRing{buf: make([]models.ErrorRecord, limit), limit: limit}
}

func (r *errorRing) add(rec models.ErrorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = rec
	r.next = (r.next + 1) % r.limit
	if r.next == 0 {
		r.full = true
	}
}

// records returns the buffered records, oldest first.
func (r *errorRing) records() []models.ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return slices.Clone(r.buf[:r.next])
	}
	out := make([]models.ErrorRecord, 0, r.limit)
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// persistError appends rec to the durable log, dropping the oldest entries
// beyond limit.
func persistError(ctx context.Context, meta metadata.Repository, rec models.ErrorRecord, limit int) error {
	var stored []models.ErrorRecord
	if _, err := metadata.GetJSON(ctx, meta, metadata.KeySyncErrorLog, &stored); err != nil {
		return err
	}
	stored = append(stored, rec)
	if len(stored) > limit {
		stored = stored[len(stored)-limit:]
	}
	return metadata.SetJSON(ctx, meta, metadata.KeySyncErrorLog, stored)
}

func recordKey(r models.ErrorRecord) string {
	return fmt.Sprintf("%s|%s|%s|%d|%s", r.Operation, r.DocumentID, r.JobID, r.Timestamp.UnixNano(), r.Message)
}

// mergeErrorLogs combines the in-memory and durable logs, newest first,
// without duplicates.
func mergeErrorLogs(memory, stored []models.ErrorRecord, limit int) []models.ErrorRecord {
	seen := make(map[string]struct{}, len(memory)+len(stored))
	out := make([]models.ErrorRecord, 0, len(memory)+len(stored))
	for _, list := range [][]models.ErrorRecord{memory, stored} {
		for _, r := range list {
			k := recordKey(r)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b models.ErrorRecord) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
