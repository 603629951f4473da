package pages

import (
	"context"
	"time"

	"github.com/01011010/notesum-hybrid/internal/models"
)

// Repository describes the page store used by the notes service and the
// sync engine.
type Repository interface {
	// Get returns common.ErrNotFound when the page does not exist.
	Get(ctx context.Context, id string) (*models.Page, error)
	Upsert(ctx context.Context, p *models.Page) error
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]models.Page, error)

	// ListPending returns pages awaiting upload ordered by id.
	ListPending(ctx context.Context) ([]models.Page, error)
	// ListPendingAfter returns pending pages with an id greater than cursor.
	ListPendingAfter(ctx context.Context, cursor string) ([]models.Page, error)

	// MarkSynced clears the pending flag of each uploaded page unless it was
	// modified again after the uploaded version.
	MarkSynced(ctx context.Context, uploaded []models.Page, at time.Time) error
	MarkFailed(ctx context.Context, ids []string) error
	MarkAllPending(ctx context.Context, at time.Time) (int64, error)

	MarkDeleted(ctx context.Context, id string, at time.Time) error
	ListDeleted(ctx context.Context) ([]string, error)
	ListDeletedAfter(ctx context.Context, cursor string) ([]string, error)
	ClearDeleted(ctx context.Context, ids []string) error
}
