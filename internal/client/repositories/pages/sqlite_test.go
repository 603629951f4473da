package pages

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01011010/notesum-hybrid/internal/client/storage"
	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/dbx"
	"github.com/01011010/notesum-hybrid/internal/models"
)

var t0 = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "pages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func page(id string, order int, modified time.Time, pending bool) *models.Page {
	return &models.Page{
		ID:           id,
		Name:         "Page " + id,
		Order:        order,
		Content:      "content of " + id,
		CreatedAt:    t0,
		LastModified: modified,
		PendingSync:  pending,
		SyncStatus:   models.SyncStatusPending,
	}
}

func TestUpsertAndGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	p := page("a", 0, t0.Add(time.Minute), true)
	require.NoError(t, r.Upsert(ctx, p))

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	p.Content = "changed"
	p.LastSynced = t0.Add(2 * time.Minute)
	p.PendingSync = false
	p.SyncStatus = models.SyncStatusSynced
	require.NoError(t, r.Upsert(ctx, p))

	got, err = r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestGet_NotFound(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	_, err := r.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListAll_OrderedByOrder(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, page("c", 2, t0, false)))
	require.NoError(t, r.Upsert(ctx, page("a", 1, t0, false)))
	require.NoError(t, r.Upsert(ctx, page("b", 0, t0, false)))

	list, err := r.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestListPendingAfter(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, page("a", 0, t0, true)))
	require.NoError(t, r.Upsert(ctx, page("b", 1, t0, false)))
	require.NoError(t, r.Upsert(ctx, page("c", 2, t0, true)))
	require.NoError(t, r.Upsert(ctx, page("d", 3, t0, true)))

	all, err := r.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	after, err := r.ListPendingAfter(ctx, "a")
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, "c", after[0].ID)
	assert.Equal(t, "d", after[1].ID)
}

func TestMarkSynced_SkipsPagesEditedAfterUpload(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	a := page("a", 0, t0, true)
	b := page("b", 1, t0, true)
	require.NoError(t, r.Upsert(ctx, a))
	require.NoError(t, r.Upsert(ctx, b))

	// b is edited while the upload of its older version is in flight
	edited := *b
	edited.LastModified = t0.Add(time.Second)
	require.NoError(t, r.Upsert(ctx, &edited))

	at := t0.Add(2 * time.Second)
	require.NoError(t, r.MarkSynced(ctx, []models.Page{*a, *b}, at))

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, got.PendingSync)
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
	assert.Equal(t, at, got.LastSynced)

	got, err = r.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, got.PendingSync)
	assert.True(t, got.LastSynced.IsZero())
}

func TestMarkFailedAndMarkAllPending(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, page("a", 0, t0, true)))
	require.NoError(t, r.Upsert(ctx, page("b", 1, t0.Add(time.Hour), false)))

	require.NoError(t, r.MarkFailed(ctx, []string{"a"}))
	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, got.SyncStatus)
	assert.True(t, got.PendingSync)

	n, err := r.MarkAllPending(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err = r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute), got.LastModified)

	got, err = r.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, got.PendingSync)
	assert.Equal(t, t0.Add(time.Hour), got.LastModified)
}

func TestDeletionSet(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	require.NoError(t, NewSQLiteRepository(db).Upsert(ctx, page("b", 0, t0, false)))

	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewSQLiteRepository(tx)
		if err := repo.Delete(ctx, "b"); err != nil {
			return err
		}
		return repo.MarkDeleted(ctx, "b", t0)
	})
	require.NoError(t, err)

	r := NewSQLiteRepository(db)
	require.NoError(t, r.MarkDeleted(ctx, "a", t0))
	require.NoError(t, r.MarkDeleted(ctx, "c", t0))
	require.NoError(t, r.MarkDeleted(ctx, "a", t0.Add(time.Second)))

	_, err = r.Get(ctx, "b")
	assert.ErrorIs(t, err, common.ErrNotFound)

	ids, err := r.ListDeleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	ids, err = r.ListDeletedAfter(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids)

	require.NoError(t, r.ClearDeleted(ctx, []string{"a", "c"}))
	ids, err = r.ListDeleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

func TestDBErrorsWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Close())

	err := r.Upsert(ctx, page("a", 0, t0, true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert page[a]")

	_, err = r.ListAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select pages")

	_, err = r.ListDeleted(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select deleted pages")
}
