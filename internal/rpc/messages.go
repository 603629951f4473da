package rpc

import (
	"time"

	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/01011010/notesum-hybrid/internal/models"
)

// QueryPagesRequest lists pages whose SyncedAt is after Since. Cursor
// continues a previous page of results; an empty cursor starts over.
type QueryPagesRequest struct {
	Since  time.Time `json:"since"`
	Cursor string    `json:"cursor,omitempty"`
	Limit  int       `json:"limit"`
}

// QueryPagesResponse carries one page of results. NextCursor is empty on
// the last page.
type QueryPagesResponse struct {
	Pages      []models.RemotePage `json:"pages"`
	NextCursor string              `json:"nextCursor,omitempty"`
}

type QueryTombstonesRequest struct {
	Since  time.Time `json:"since"`
	Cursor string    `json:"cursor,omitempty"`
	Limit  int       `json:"limit"`
}

type QueryTombstonesResponse struct {
	Tombstones []models.Tombstone `json:"tombstones"`
	NextCursor string             `json:"nextCursor,omitempty"`
}

type GetPageRequest struct {
	ID string `json:"id"`
}

type GetPageResponse struct {
	Page models.RemotePage `json:"page"`
}

// BatchWriteRequest is applied atomically: either every upsert and delete
// commits or none does.
type BatchWriteRequest struct {
	Upserts []models.RemotePage `json:"upserts,omitempty"`
	Deletes []string            `json:"deletes,omitempty"`
}

type BatchWriteResponse struct {
	SyncedAt time.Time `json:"syncedAt"`
	Written  int       `json:"written"`
	Deleted  int       `json:"deleted"`
}

type PutTombstoneRequest struct {
	PageID string `json:"pageId"`
}

type PutTombstoneResponse struct {
	Tombstone models.Tombstone `json:"tombstone"`
}

// ExportSnapshotRequest carries no fields; the caller is identified by
// the access token.
type ExportSnapshotRequest = emptypb.Empty

// ExportSnapshotResponse points at an uploaded snapshot of the caller's
// pages. Content stays encrypted.
type ExportSnapshotResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	Pages     int       `json:"pages"`
	ExpiresAt time.Time `json:"expiresAt"`
}
