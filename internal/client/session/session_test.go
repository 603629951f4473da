package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/server/auth"
)

func TestFromToken(t *testing.T) {
	token, err := auth.GenerateToken("user-1", []byte("server-secret"), time.Hour)
	require.NoError(t, err)

	s, err := FromToken("  " + token + "\n")
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, token, s.Token)
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(time.Now().Add(2*time.Hour)))
}

func TestFromToken_Invalid(t *testing.T) {
	for _, in := range []string{"", "garbage", "a.b.c"} {
		_, err := FromToken(in)
		assert.ErrorIs(t, err, common.ErrInvalidToken, in)
	}
}

func TestExpired_NoExpiry(t *testing.T) {
	assert.False(t, (&Session{UserID: "u"}).Expired(time.Now()))
}
