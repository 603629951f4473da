// Package common defines sentinel errors and constants shared by the client,
// the server and the parser. Callers should use errors.Is to match them.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors.
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Input errors.
	ErrValidation = errors.New("validation error")

	// Auth errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Vault errors.
	ErrVaultLocked         = errors.New("vault locked")
	ErrVaultNotInitialized = errors.New("vault not initialized")
	ErrWrongPassphrase     = errors.New("wrong passphrase")
)
