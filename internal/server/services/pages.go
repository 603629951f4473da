package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/dbx"
	"github.com/01011010/notesum-hybrid/internal/models"
	"github.com/01011010/notesum-hybrid/internal/rpc"
	"github.com/01011010/notesum-hybrid/internal/server/repositories/repomanager"
	"github.com/01011010/notesum-hybrid/internal/server/snapshots"
)

const (
	DefaultQueryLimit = 50
	MaxQueryLimit     = 500
	MaxBatchSize      = 500
)

// PagesService is the remote page store. Every method is scoped to the
// calling user.
type PagesService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       snapshots.Store
	snapshotTTL time.Duration
	now         func() time.Time
}

func NewPagesService(db *sql.DB, rm repomanager.RepositoryManager, store snapshots.Store, snapshotTTL time.Duration) *PagesService {
	return &PagesService{
		db:          db,
		repomanager: rm,
		store:       store,
		snapshotTTL: snapshotTTL,
		now:         time.Now,
	}
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultQueryLimit
	case n > MaxQueryLimit:
		return MaxQueryLimit
	}
	return n
}

// QueryPages returns pages synced after req.Since in (synced_at, id) order.
// A full page of results carries a cursor for the next call.
func (s *PagesService) QueryPages(ctx context.Context, userID string, req *rpc.QueryPagesRequest) (*rpc.QueryPagesResponse, error) {
	cur, err := rpc.DecodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	limit := clampLimit(req.Limit)

	list, err := s.repomanager.Pages(s.db).SelectModifiedAfter(ctx, userID, req.Since, cur.At, cur.ID, limit)
	if err != nil {
		return nil, err
	}

	resp := &rpc.QueryPagesResponse{Pages: list}
	if len(list) == limit {
		last := list[len(list)-1]
		resp.NextCursor = rpc.Cursor{At: last.SyncedAt, ID: last.ID}.Encode()
	}
	return resp, nil
}

func (s *PagesService) QueryTombstones(ctx context.Context, userID string, req *rpc.QueryTombstonesRequest) (*rpc.QueryTombstonesResponse, error) {
	cur, err := rpc.DecodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	var afterID int64
	if cur.ID != "" {
		afterID, err = strconv.ParseInt(cur.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed cursor", common.ErrValidation)
		}
	}
	limit := clampLimit(req.Limit)

	list, err := s.repomanager.Pages(s.db).SelectTombstonesAfter(ctx, userID, req.Since, cur.At, afterID, limit)
	if err != nil {
		return nil, err
	}

	resp := &rpc.QueryTombstonesResponse{Tombstones: list}
	if len(list) == limit {
		last := list[len(list)-1]
		resp.NextCursor = rpc.Cursor{At: last.DeletedAt, ID: strconv.FormatInt(last.ID, 10)}.Encode()
	}
	return resp, nil
}

func (s *PagesService) GetPage(ctx context.Context, userID, id string) (*models.RemotePage, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: page id is required", common.ErrValidation)
	}
	return s.repomanager.Pages(s.db).GetByID(ctx, userID, id)
}

func validateBatch(req *rpc.BatchWriteRequest) error {
	if len(req.Upserts)+len(req.Deletes) > MaxBatchSize {
		return fmt.Errorf("%w: batch exceeds %d operations", common.ErrValidation, MaxBatchSize)
	}
	for _, p := range req.Upserts {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("%w: page id is required", common.ErrValidation)
		}
	}
	for _, id := range req.Deletes {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: page id is required", common.ErrValidation)
		}
	}
	return nil
}

// BatchWrite applies upserts and deletes in one transaction. Each delete
// also appends a tombstone, even when the row was already gone, so other
// devices still learn about it.
func (s *PagesService) BatchWrite(ctx context.Context, userID string, req *rpc.BatchWriteRequest) (*rpc.BatchWriteResponse, error) {
	if err := validateBatch(req); err != nil {
		return nil, err
	}

	resp := &rpc.BatchWriteResponse{}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Pages(tx)

		for _, p := range req.Upserts {
			at, err := repo.Upsert(ctx, userID, p)
			if err != nil {
				return err
			}
			resp.SyncedAt = at
			resp.Written++
		}

		for _, id := range req.Deletes {
			removed, err := repo.Delete(ctx, userID, id)
			if err != nil {
				return err
			}
			if removed {
				resp.Deleted++
			}
		}
		if len(req.Deletes) > 0 {
			if err := repo.InsertTombstones(ctx, userID, req.Deletes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply batch: %w", err)
	}

	if resp.SyncedAt.IsZero() {
		resp.SyncedAt = s.now().UTC()
	}
	return resp, nil
}

func (s *PagesService) PutTombstone(ctx context.Context, userID, pageID string) (models.Tombstone, error) {
	if strings.TrimSpace(pageID) == "" {
		return models.Tombstone{}, fmt.Errorf("%w: page id is required", common.ErrValidation)
	}
	return s.repomanager.Pages(s.db).InsertTombstone(ctx, userID, pageID)
}

type snapshotDocument struct {
	UserID     string              `json:"userId"`
	ExportedAt time.Time           `json:"exportedAt"`
	Pages      []models.RemotePage `json:"pages"`
}

// ExportSnapshot uploads every page of the user as one JSON document and
// returns a presigned link to it. Content is exported as stored, so
// encrypted pages stay encrypted.
func (s *PagesService) ExportSnapshot(ctx context.Context, userID string) (*rpc.ExportSnapshotResponse, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: snapshot storage is not configured", common.ErrInternal)
	}

	list, err := s.repomanager.Pages(s.db).SelectAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.RemotePage{}
	}

	now := s.now().UTC()
	body, err := json.Marshal(snapshotDocument{UserID: userID, ExportedAt: now, Pages: list})
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := snapshots.Key(userID, now)
	if err := s.store.Put(ctx, key, body); err != nil {
		return nil, err
	}

	url, err := s.store.PresignGet(ctx, key, s.snapshotTTL)
	if err != nil {
		return nil, err
	}

	return &rpc.ExportSnapshotResponse{
		URL:       url,
		Key:       key,
		Pages:     len(list),
		ExpiresAt: now.Add(s.snapshotTTL),
	}, nil
}
