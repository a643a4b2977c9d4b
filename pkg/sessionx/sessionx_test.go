package sessionx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	s, err := NewSigner("test-signing-secret", "keyshare", time.Hour)
	require.NoError(t, err)

	token, err := s.Sign("01JABCDEF0123456789ABCDEFG", "alice@example.com", true)
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "01JABCDEF0123456789ABCDEFG", claims.Subject)
	require.Equal(t, "alice@example.com", claims.Email)
	require.True(t, claims.PasswordChangeRequired)
	require.Equal(t, "keyshare", claims.Issuer)
}

func TestVerifyExpiredToken(t *testing.T) {
	s, err := NewSigner("test-signing-secret", "keyshare", time.Millisecond)
	require.NoError(t, err)

	token, err := s.Sign("user-id", "a@b.c", false)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = s.Verify(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	a, err := NewSigner("secret-a", "keyshare", time.Hour)
	require.NoError(t, err)
	b, err := NewSigner("secret-b", "keyshare", time.Hour)
	require.NoError(t, err)

	token, err := a.Sign("user-id", "a@b.c", false)
	require.NoError(t, err)

	_, err = b.Verify(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyGarbage(t *testing.T) {
	s, err := NewSigner("test-signing-secret", "keyshare", time.Hour)
	require.NoError(t, err)

	for _, raw := range []string{"", "not.a.jwt", "aaaa.bbbb.cccc"} {
		_, err := s.Verify(raw)
		require.ErrorIs(t, err, ErrTokenInvalid)
	}
}

func TestNewSignerValidation(t *testing.T) {
	_, err := NewSigner("", "keyshare", time.Hour)
	require.Error(t, err)
	_, err = NewSigner("secret", "keyshare", 0)
	require.Error(t, err)
}
