package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashToken_RoundTrip(t *testing.T) {
	h := NewHasher(DefaultParams())

	encoded, err := h.HashToken("s3cret-token")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "argon2id-v1$"))

	ok, err := h.VerifyToken("s3cret-token", encoded)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyToken_WrongToken(t *testing.T) {
	h := NewHasher(DefaultParams())

	encoded, err := h.HashToken("s3cret-token")
	require.NoError(t, err)

	ok, err := h.VerifyToken("other-token", encoded)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashToken_SaltsDiffer(t *testing.T) {
	h := NewHasher(DefaultParams())

	first, err := h.HashToken("s3cret-token")
	require.NoError(t, err)
	second, err := h.HashToken("s3cret-token")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestVerifyToken_MalformedHash(t *testing.T) {
	h := NewHasher(DefaultParams())

	for _, encoded := range []string{
		"",
		"argon2id-v1",
		"md5$abc$def",
		"argon2id-v1$not/base64!$x",
	} {
		_, err := h.VerifyToken("token", encoded)
		require.ErrorIs(t, err, ErrInvalidHash)
	}
}
