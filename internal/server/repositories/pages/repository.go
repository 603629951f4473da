package pages

import (
	"context"
	"time"

	"github.com/01011010/notesum-hybrid/internal/models"
)

// Repository stores each user's remote pages and the append-only
// tombstone log. Every method is scoped to one user.
type Repository interface {
	// Upsert writes a page and returns the synced_at the store stamped on it.
	Upsert(ctx context.Context, userID string, p models.RemotePage) (time.Time, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, userID, id string) (bool, error)
	InsertTombstone(ctx context.Context, userID, pageID string) (models.Tombstone, error)
	InsertTombstones(ctx context.Context, userID string, pageIDs []string) error

	// SelectModifiedAfter pages through rows with synced_at > since in
	// (synced_at, id) order, starting after the keyset position (afterAt, afterID).
	SelectModifiedAfter(ctx context.Context, userID string, since, afterAt time.Time, afterID string, limit int) ([]models.RemotePage, error)
	SelectTombstonesAfter(ctx context.Context, userID string, since, afterAt time.Time, afterID int64, limit int) ([]models.Tombstone, error)

	// GetByID returns common.ErrNotFound when the page does not exist.
	GetByID(ctx context.Context, userID, id string) (*models.RemotePage, error)
	SelectAll(ctx context.Context, userID string) ([]models.RemotePage, error)
}
