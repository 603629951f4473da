// Package pages provides the PostgreSQL-backed remote page store.
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

const pageColumns = `id, name, sort_order, content, is_encrypted, created_at, last_modified, synced_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, userID string, p models.RemotePage) (time.Time, error) {
	query := `
		INSERT INTO pages (user_id, id, name, sort_order, content, is_encrypted, created_at, last_modified, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (user_id, id)
		DO UPDATE SET
			name = EXCLUDED.name,
			sort_order = EXCLUDED.sort_order,
			content = EXCLUDED.content,
			is_encrypted = EXCLUDED.is_encrypted,
			created_at = EXCLUDED.created_at,
			last_modified = EXCLUDED.last_modified,
			synced_at = now()
		RETURNING synced_at
	`
	var syncedAt time.Time
	err := r.db.QueryRowContext(ctx, query,
		userID, p.ID, p.Name, p.Order, p.Content, p.IsEncrypted, p.CreatedAt, p.LastModified,
	).Scan(&syncedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to upsert page[%s]: %w", p.ID, err)
	}
	return syncedAt, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pages WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete page[%s]: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) InsertTombstone(ctx context.Context, userID, pageID string) (models.Tombstone, error) {
	t := models.Tombstone{PageID: pageID}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tombstones (user_id, page_id) VALUES ($1, $2) RETURNING id, deleted_at`,
		userID, pageID,
	).Scan(&t.ID, &t.DeletedAt)
	if err != nil {
		return models.Tombstone{}, fmt.Errorf("failed to insert tombstone[%s]: %w", pageID, err)
	}
	return t, nil
}

func (r *PostgresRepository) InsertTombstones(ctx context.Context, userID string, pageIDs []string) error {
	for _, id := range pageIDs {
		if _, err := r.InsertTombstone(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

func scanPages(rows *sql.Rows) ([]models.RemotePage, error) {
	defer rows.Close()

	var result []models.RemotePage
	for rows.Next() {
		var p models.RemotePage
		if err := rows.Scan(&p.ID, &p.Name, &p.Order, &p.Content, &p.IsEncrypted, &p.CreatedAt, &p.LastModified, &p.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page row: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate page rows: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) SelectModifiedAfter(ctx context.Context, userID string, since, afterAt time.Time, afterID string, limit int) ([]models.RemotePage, error) {
	query := `SELECT ` + pageColumns + ` FROM pages
		WHERE user_id = $1 AND synced_at > $2 AND (synced_at, id) > ($3, $4)
		ORDER BY synced_at, id
		LIMIT $5`
	rows, err := r.db.QueryContext(ctx, query, userID, since, afterAt, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select pages: %w", err)
	}
	return scanPages(rows)
}

func (r *PostgresRepository) SelectTombstonesAfter(ctx context.Context, userID string, since, afterAt time.Time, afterID int64, limit int) ([]models.Tombstone, error) {
	query := `SELECT id, page_id, deleted_at FROM tombstones
		WHERE user_id = $1 AND deleted_at > $2 AND (deleted_at, id) > ($3, $4)
		ORDER BY deleted_at, id
		LIMIT $5`
	rows, err := r.db.QueryContext(ctx, query, userID, since, afterAt, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select tombstones: %w", err)
	}
	defer rows.Close()

	var result []models.Tombstone
	for rows.Next() {
		var t models.Tombstone
		if err := rows.Scan(&t.ID, &t.PageID, &t.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tombstone row: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tombstone rows: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*models.RemotePage, error) {
	var p models.RemotePage
	err := r.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE user_id = $1 AND id = $2`, userID, id,
	).Scan(&p.ID, &p.Name, &p.Order, &p.Content, &p.IsEncrypted, &p.CreatedAt, &p.LastModified, &p.SyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page[%s]: %w", id, err)
	}
	return &p, nil
}

func (r *PostgresRepository) SelectAll(ctx context.Context, userID string) ([]models.RemotePage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE user_id = $1 ORDER BY sort_order, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select pages: %w", err)
	}
	return scanPages(rows)
}
