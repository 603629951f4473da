// Package cryptox is the encryption gateway used by the sync engine and the
// vault: argon2id key derivation and AES-GCM sealing of opaque payloads into
// transport-safe tokens.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KeySize is the length of derived keys (AES-256).
const KeySize = 32

const nonceSize = 12

// ErrDecrypt is returned for every failure on the decrypt path: bad
// encoding, truncated payload, wrong key or tampered ciphertext.
var ErrDecrypt = errors.New("decrypt failed")

// DeriveKey stretches a passphrase into a KeySize key with argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// MakeVerifier returns a value that can be stored to check a derived key
// later without storing the key itself.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// Encrypt seals plaintext with AES-GCM under key.
//
// A fresh random 12-byte nonce is generated for every call and prepended to
// the ciphertext; the whole payload is encoded with unpadded URL-safe base64
// so it survives storage and transport unchanged.
//
// Example:
//
//	key := cryptox.DeriveKey([]byte("passphrase"), salt)
//	token, err := cryptox.Encrypt(key, []byte("hello"))
//	if err != nil {
//	    return err
//	}
//	plain, err := cryptox.Decrypt(key, token) // []byte("hello")
func Encrypt(key, plaintext []byte) (string, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+aesgcm.Overhead())
	if _, err := randRead(nonce); err != nil {
		return "", err
	}

	sealed := aesgcm.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It never returns partial or unauthenticated
// plaintext: any failure yields ErrDecrypt.
func Decrypt(key []byte, token string) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, ErrDecrypt
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrDecrypt
	}
	if len(raw) < nonceSize+aesgcm.Overhead() {
		return nil, ErrDecrypt
	}

	plaintext, err := aesgcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// randRead is a seam for tests.
var randRead = rand.Read

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := randRead(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}

// Wipe zeroes b in place. Nil is a no-op.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
