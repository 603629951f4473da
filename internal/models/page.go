// Package models defines the records shared by the local store, the remote
// store and the sync engine.
package models

import "time"

// SyncStatus is the sync state of a local page.
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusMerged  SyncStatus = "merged"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusError   SyncStatus = "error"
)

// Page is a note document as stored locally. Content is plaintext.
type Page struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Order        int        `json:"order"`
	Content      string     `json:"content"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastModified time.Time  `json:"lastModified"`
	LastSynced   time.Time  `json:"lastSynced"`
	IsEncrypted  bool       `json:"isEncrypted"`
	PendingSync  bool       `json:"pendingSync"`
	SyncStatus   SyncStatus `json:"syncStatus"`
}

// RemotePage is the remote form of a page. Content holds ciphertext when
// IsEncrypted is set. SyncedAt is stamped by the remote store on every write
// and is the key for modified-after queries.
type RemotePage struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Order        int       `json:"order"`
	Content      string    `json:"content"`
	IsEncrypted  bool      `json:"isEncrypted"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
	SyncedAt     time.Time `json:"syncedAt"`
}

// Tombstone records one deletion event of a remote page.
type Tombstone struct {
	ID        int64     `json:"id"`
	PageID    string    `json:"pageId"`
	DeletedAt time.Time `json:"deletedAt"`
}
