package cli

import (
	"bytes"
	"context"

	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/cryptox"
)

// getPassword is an indirection used in tests.
var getPassword = GetPassword

// Unlock opens the vault, creating it on first use.
func (a *App) Unlock(ctx context.Context) error {
	if a.vault.IsUnlocked() {
		printlnFn("Vault is already unlocked.")
		return nil
	}
	ok, err := a.vault.IsInitialized(ctx)
	if err != nil {
		printlnFn("Failed to read vault:", err)
		return err
	}

	if !ok {
		printlnFn("Choose a passphrase. It encrypts your pages on the server and cannot be recovered.")
		pass, err := a.newPassphrase()
		if err != nil {
			return err
		}
		defer cryptox.Wipe(pass)
		if err := a.vault.Create(ctx, pass); err != nil {
			printlnFn("Failed to create vault:", err)
			return err
		}
		printlnFn("Vault created.")
		return nil
	}

	pass, err := getPassword(a.out, "Passphrase")
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pass)
	if err := a.vault.Unlock(ctx, pass); err != nil {
		printlnFn("Unlock failed:", err)
		return err
	}
	printlnFn("Vault unlocked.")
	return nil
}

func (a *App) newPassphrase() ([]byte, error) {
	pass, err := getPassword(a.out, "New passphrase")
	if err != nil {
		return nil, err
	}
	again, err := getPassword(a.out, "Repeat passphrase")
	if err != nil {
		cryptox.Wipe(pass)
		return nil, err
	}
	defer cryptox.Wipe(again)
	if !bytes.Equal(pass, again) {
		cryptox.Wipe(pass)
		printlnFn("Passphrases do not match.")
		return nil, common.ErrValidation
	}
	return pass, nil
}

// Lock stops a running sync and forgets the key.
func (a *App) Lock(ctx context.Context) error {
	a.engine.Abort()
	a.vault.Lock()
	printlnFn("Vault locked.")
	return nil
}

// Passwd changes the passphrase. Every page is re-uploaded under the new
// key on the next sync.
func (a *App) Passwd(ctx context.Context) error {
	old, err := getPassword(a.out, "Current passphrase")
	if err != nil {
		return err
	}
	defer cryptox.Wipe(old)
	pass, err := a.newPassphrase()
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pass)

	if err := a.vault.ChangePassphrase(ctx, old, pass); err != nil {
		printlnFn("Failed to change passphrase:", err)
		return err
	}
	printlnFn("Passphrase changed. Pages will be re-encrypted on the next sync.")
	return nil
}

func (a *App) Token(ctx context.Context, token string) error {
	if err := a.setToken(token); err != nil {
		printlnFn("Invalid token:", err)
		return err
	}
	user, ok := a.userID()
	if !ok {
		printlnFn("Token has expired.")
		return common.ErrInvalidToken
	}
	a.log.Info(ctx, "Access token set", "user", user)
	printlnFn("Signed in as", user)
	return nil
}
