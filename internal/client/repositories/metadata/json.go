package metadata

import (
	"context"
	"encoding/json"
	"fmt"
)

// Well-known keys.
const (
	KeyPendingSyncJob     = "pendingSyncJob"
	KeyLastSyncTime       = "lastSyncTime"
	KeyLastSuccessfulSync = "lastSuccessfulSync"
	KeySyncErrorLog       = "syncErrorLog"
	KeyVaultSalt          = "vaultSalt"
	KeyVaultVerifier      = "vaultVerifier"
)

// GetJSON decodes the value stored under key into v. It reports false when
// the key is missing.
func GetJSON(ctx context.Context, r Repository, key string, v any) (bool, error) {
	raw, err := r.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode metadata[%s]: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v under key as JSON.
func SetJSON(ctx context.Context, r Repository, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode metadata[%s]: %w", key, err)
	}
	return r.Set(ctx, key, raw)
}
