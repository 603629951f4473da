// Package session holds the client's identity: the access token issued by
// the server and the user id it carries.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/01011010/notesum-hybrid/internal/common"
)

type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

type Session struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// FromToken reads the user id from token without verifying its signature.
// The server verifies every call; the client only needs to know who it is
// acting for.
func FromToken(token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", common.ErrInvalidToken)
	}

	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if c.UserID == "" {
		return nil, fmt.Errorf("%w: token has no user id", common.ErrInvalidToken)
	}

	s := &Session{UserID: c.UserID, Token: token}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s, nil
}

// Expired reports whether the token's expiry has passed at now. Tokens
// without an expiry never expire.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
