// Package vault holds the page encryption key for the lifetime of an
// unlocked session.
//
// The passphrase itself is never stored. The metadata table keeps the
// argon2 salt and a verifier of the derived key, which is enough to check a
// passphrase offline. The key lives in memory only and is wiped on Lock.
package vault

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/01011010/notesum-hybrid/internal/client/repositories/metadata"
	"github.com/01011010/notesum-hybrid/internal/client/repositories/pages"
	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/cryptox"
	"github.com/01011010/notesum-hybrid/internal/dbx"
)

const saltSize = 16

type Vault struct {
	db  *sql.DB
	now func() time.Time

	mu  sync.RWMutex
	key []byte
}

func New(db *sql.DB) *Vault {
	return &Vault{db: db, now: time.Now}
}

// IsInitialized reports whether a passphrase has been set up.
func (v *Vault) IsInitialized(ctx context.Context) (bool, error) {
	salt, err := metadata.NewSQLiteRepository(v.db).Get(ctx, metadata.KeyVaultSalt)
	if err != nil {
		return false, err
	}
	return salt != nil, nil
}

// Create sets up a new vault and leaves it unlocked.
func (v *Vault) Create(ctx context.Context, passphrase []byte) error {
	if len(passphrase) == 0 {
		return fmt.Errorf("%w: empty passphrase", common.ErrValidation)
	}
	ok, err := v.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: vault already initialized", common.ErrValidation)
	}

	salt, err := cryptox.RandomBytes(saltSize)
	if err != nil {
		return err
	}
	key := cryptox.DeriveKey(passphrase, salt)
	err = dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return saveParams(ctx, metadata.NewSQLiteRepository(tx), salt, key)
	})
	if err != nil {
		cryptox.Wipe(key)
		return fmt.Errorf("failed to create vault: %w", err)
	}

	v.setKey(key)
	return nil
}

// Unlock derives the key from passphrase and checks it against the stored
// verifier.
func (v *Vault) Unlock(ctx context.Context, passphrase []byte) error {
	key, err := v.derive(ctx, passphrase)
	if err != nil {
		return err
	}
	v.setKey(key)
	return nil
}

func (v *Vault) Lock() {
	v.setKey(nil)
}

func (v *Vault) IsUnlocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.key != nil
}

// Key returns a copy of the current key, or false when locked.
func (v *Vault) Key() ([]byte, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.key == nil {
		return nil, false
	}
	return append([]byte(nil), v.key...), true
}

// ChangePassphrase re-keys the vault. Every page is queued for upload so
// the remote copy is re-encrypted under the new key on the next sync.
func (v *Vault) ChangePassphrase(ctx context.Context, oldPassphrase, newPassphrase []byte) error {
	if len(newPassphrase) == 0 {
		return fmt.Errorf("%w: empty passphrase", common.ErrValidation)
	}
	oldKey, err := v.derive(ctx, oldPassphrase)
	if err != nil {
		return err
	}
	cryptox.Wipe(oldKey)

	salt, err := cryptox.RandomBytes(saltSize)
	if err != nil {
		return err
	}
	key := cryptox.DeriveKey(newPassphrase, salt)
	err = dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := saveParams(ctx, metadata.NewSQLiteRepository(tx), salt, key); err != nil {
			return err
		}
		_, err := pages.NewSQLiteRepository(tx).MarkAllPending(ctx, v.now())
		return err
	})
	if err != nil {
		cryptox.Wipe(key)
		return fmt.Errorf("failed to change passphrase: %w", err)
	}

	v.setKey(key)
	return nil
}

func (v *Vault) derive(ctx context.Context, passphrase []byte) ([]byte, error) {
	repo := metadata.NewSQLiteRepository(v.db)
	salt, err := repo.Get(ctx, metadata.KeyVaultSalt)
	if err != nil {
		return nil, err
	}
	verifier, err := repo.Get(ctx, metadata.KeyVaultVerifier)
	if err != nil {
		return nil, err
	}
	if salt == nil || verifier == nil {
		return nil, common.ErrVaultNotInitialized
	}

	key := cryptox.DeriveKey(passphrase, salt)
	if subtle.ConstantTimeCompare(verifier, cryptox.MakeVerifier(key)) == 0 {
		cryptox.Wipe(key)
		return nil, common.ErrWrongPassphrase
	}
	return key, nil
}

func (v *Vault) setKey(key []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cryptox.Wipe(v.key)
	v.key = key
}

func saveParams(ctx context.Context, repo metadata.Repository, salt, key []byte) error {
	if err := repo.Set(ctx, metadata.KeyVaultSalt, salt); err != nil {
		return err
	}
	return repo.Set(ctx, metadata.KeyVaultVerifier, cryptox.MakeVerifier(key))
}
