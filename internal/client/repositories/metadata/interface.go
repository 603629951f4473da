package metadata

import (
	"context"
)

// Repository is a key/value store for client state that is not a page:
// sync checkpoints, last sync times, the error log and vault parameters.
// Get returns nil, nil for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
