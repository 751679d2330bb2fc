package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSigner_RoundTrip(t *testing.T) {
	s := NewTokenSigner("test-secret", time.Hour, 24*time.Hour)

	access, err := s.SignAccess("alice")
	require.NoError(t, err)

	subject, err := s.VerifyJWT(access)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestTokenSigner_Expired(t *testing.T) {
	s := NewTokenSigner("test-secret", -time.Minute, 24*time.Hour)

	access, err := s.SignAccess("alice")
	require.NoError(t, err)

	_, err = s.VerifyJWT(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenSigner_WrongSecret(t *testing.T) {
	s := NewTokenSigner("secret-a", time.Hour, 24*time.Hour)
	other := NewTokenSigner("secret-b", time.Hour, 24*time.Hour)

	access, err := s.SignAccess("alice")
	require.NoError(t, err)

	_, err = other.VerifyJWT(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenSigner_Garbage(t *testing.T) {
	s := NewTokenSigner("test-secret", time.Hour, 24*time.Hour)

	_, err := s.VerifyJWT("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
