package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(TokenSize256)
	require.NoError(t, err)
	b, err := GenerateToken(TokenSize256)
	require.NoError(t, err)

	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
	require.NotContains(t, a, "=")
	require.NotContains(t, a, "+")
	require.NotContains(t, a, "/")
}

func TestFingerprintToken(t *testing.T) {
	token, err := GenerateToken(TokenSize128)
	require.NoError(t, err)

	fp := FingerprintToken(token)
	require.NotEqual(t, token, fp)
	require.Equal(t, fp, FingerprintToken(token))
	require.NotEqual(t, fp, FingerprintToken(token+"x"))
}
