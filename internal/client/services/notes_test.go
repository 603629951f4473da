package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01011010/notesum-hybrid/internal/client/repositories/pages"
	"github.com/01011010/notesum-hybrid/internal/client/storage"
	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/models"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newNotes(t *testing.T) (*notesService, *sql.DB) {
	t.Helper()
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clk := &stepClock{t: time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)}
	return &notesService{db: db, now: clk.now}, db
}

func TestCreatePage_AssignsOrderAndPending(t *testing.T) {
	s, _ := newNotes(t)
	ctx := context.Background()

	a, err := s.CreatePage(ctx, " Groceries ")
	require.NoError(t, err)
	b, err := s.CreatePage(ctx, "Work")
	require.NoError(t, err)

	assert.Equal(t, "Groceries", a.Name)
	assert.Equal(t, 0, a.Order)
	assert.Equal(t, 1, b.Order)
	assert.True(t, a.PendingSync)
	assert.Equal(t, models.SyncStatusPending, a.SyncStatus)
	assert.NotEmpty(t, a.ID)

	_, err = s.CreatePage(ctx, "  ")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSavePage_StampsModification(t *testing.T) {
	s, db := newNotes(t)
	ctx := context.Background()

	p, err := s.CreatePage(ctx, "Notes")
	require.NoError(t, err)

	// pretend the page was uploaded in the future relative to our clock
	p.PendingSync = false
	p.SyncStatus = models.SyncStatusSynced
	p.LastSynced = p.LastModified.Add(time.Hour)
	require.NoError(t, pages.NewSQLiteRepository(db).Upsert(ctx, p))

	saved, err := s.SavePage(ctx, p.ID, "x: 5\nx * 2")
	require.NoError(t, err)
	assert.Equal(t, "x: 5\nx * 2", saved.Content)
	assert.True(t, saved.PendingSync)
	assert.True(t, saved.LastModified.After(saved.LastSynced))

	got, err := s.GetPage(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	_, err = s.SavePage(ctx, "missing", "text")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRenameAndReorder(t *testing.T) {
	s, _ := newNotes(t)
	ctx := context.Background()

	a, err := s.CreatePage(ctx, "A")
	require.NoError(t, err)
	b, err := s.CreatePage(ctx, "B")
	require.NoError(t, err)

	renamed, err := s.RenamePage(ctx, a.ID, "Alpha")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", renamed.Name)

	require.NoError(t, s.ReorderPages(ctx, []string{b.ID, a.ID}))
	list, err := s.ListPages(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)

	err = s.ReorderPages(ctx, []string{"missing"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeletePage_RecordsDeletion(t *testing.T) {
	s, db := newNotes(t)
	ctx := context.Background()

	p, err := s.CreatePage(ctx, "Temp")
	require.NoError(t, err)
	require.NoError(t, s.DeletePage(ctx, p.ID))

	_, err = s.GetPage(ctx, p.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	ids, err := pages.NewSQLiteRepository(db).ListDeleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, ids)

	err = s.DeletePage(ctx, p.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
