package pages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/dbx"
	"github.com/01011010/notesum-hybrid/internal/models"
)

const pageColumns = `id, name, sort_order, content, created_at, last_modified, last_synced, is_encrypted, pending_sync, sync_status`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func nullMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(s scanner) (*models.Page, error) {
	var p models.Page
	var created, modified int64
	var synced sql.NullInt64
	var encrypted, pending bool
	var status string
	if err := s.Scan(&p.ID, &p.Name, &p.Order, &p.Content, &created, &modified, &synced, &encrypted, &pending, &status); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(created)
	p.LastModified = fromMillis(modified)
	if synced.Valid {
		p.LastSynced = fromMillis(synced.Int64)
	}
	p.IsEncrypted = encrypted
	p.PendingSync = pending
	p.SyncStatus = models.SyncStatus(status)
	return &p, nil
}

func (r *SQLiteRepository) query(ctx context.Context, what, query string, args ...any) ([]models.Page, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", what, err)
	}
	defer rows.Close()

	var result []models.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page row: %w", err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate page rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Page, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id)
	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page[%s]: %w", id, err)
	}
	return p, nil
}

// Upsert inserts a page or replaces every column of an existing one.
func (r *SQLiteRepository) Upsert(ctx context.Context, p *models.Page) error {
	status := p.SyncStatus
	if status == "" {
		status = models.SyncStatusPending
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pages (`+pageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			sort_order = excluded.sort_order,
			content = excluded.content,
			created_at = excluded.created_at,
			last_modified = excluded.last_modified,
			last_synced = excluded.last_synced,
			is_encrypted = excluded.is_encrypted,
			pending_sync = excluded.pending_sync,
			sync_status = excluded.sync_status
	`, p.ID, p.Name, p.Order, p.Content, toMillis(p.CreatedAt), toMillis(p.LastModified),
		nullMillis(p.LastSynced), p.IsEncrypted, p.PendingSync, string(status))
	if err != nil {
		return fmt.Errorf("failed to upsert page[%s]: %w", p.ID, err)
	}
	return nil
}

// Delete removes the page row. Deleting a missing page is not an error.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete page[%s]: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]models.Page, error) {
	return r.query(ctx, "pages", `SELECT `+pageColumns+` FROM pages ORDER BY sort_order, created_at, id`)
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]models.Page, error) {
	return r.query(ctx, "pending pages", `SELECT `+pageColumns+` FROM pages WHERE pending_sync = 1 ORDER BY id`)
}

func (r *SQLiteRepository) ListPendingAfter(ctx context.Context, cursor string) ([]models.Page, error) {
	return r.query(ctx, "pending pages",
		`SELECT `+pageColumns+` FROM pages WHERE pending_sync = 1 AND id > ? ORDER BY id`, cursor)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, uploaded []models.Page, at time.Time) error {
	for _, p := range uploaded {
		_, err := r.db.ExecContext(ctx, `
			UPDATE pages
			SET pending_sync = 0, sync_status = ?, last_synced = ?
			WHERE id = ? AND last_modified <= ?
		`, string(models.SyncStatusSynced), toMillis(at), p.ID, toMillis(p.LastModified))
		if err != nil {
			return fmt.Errorf("failed to mark page[%s] synced: %w", p.ID, err)
		}
	}
	return nil
}

// MarkFailed flags pages whose upload failed. They stay pending.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, ids []string) error {
	for _, id := range ids {
		_, err := r.db.ExecContext(ctx, `UPDATE pages SET sync_status = ? WHERE id = ?`,
			string(models.SyncStatusError), id)
		if err != nil {
			return fmt.Errorf("failed to mark page[%s] failed: %w", id, err)
		}
	}
	return nil
}

// MarkAllPending queues every page for upload and returns how many rows
// changed.
func (r *SQLiteRepository) MarkAllPending(ctx context.Context, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pages SET pending_sync = 1, sync_status = ?, last_modified = MAX(last_modified, ?)
	`, string(models.SyncStatusPending), toMillis(at))
	if err != nil {
		return 0, fmt.Errorf("failed to mark pages pending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deleted_pages (page_id, deleted_at) VALUES (?, ?)
		ON CONFLICT(page_id) DO UPDATE SET deleted_at = excluded.deleted_at
	`, id, toMillis(at))
	if err != nil {
		return fmt.Errorf("failed to mark page[%s] deleted: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select deleted pages: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deleted page row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deleted page rows: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) ListDeleted(ctx context.Context) ([]string, error) {
	return r.listIDs(ctx, `SELECT page_id FROM deleted_pages ORDER BY page_id`)
}

func (r *SQLiteRepository) ListDeletedAfter(ctx context.Context, cursor string) ([]string, error) {
	return r.listIDs(ctx, `SELECT page_id FROM deleted_pages WHERE page_id > ? ORDER BY page_id`, cursor)
}

func (r *SQLiteRepository) ClearDeleted(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM deleted_pages WHERE page_id = ?`, id); err != nil {
			return fmt.Errorf("failed to clear deleted page[%s]: %w", id, err)
		}
	}
	return nil
}
