package refresh_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/jrsteele09/go-token-service/internal/errors"
	"github.com/jrsteele09/go-token-service/token/refresh"
	"github.com/stretchr/testify/require"
)

func TestHasher_Defaults(t *testing.T) {
	h, err := refresh.NewHasher()
	require.NoError(t, err)
	require.Equal(t, refresh.AlgorithmSHA256, h.Algorithm())
	require.False(t, h.Keyed())

	secret, err := h.GenerateRawSecret()
	require.NoError(t, err)
	require.Len(t, secret, refresh.DefaultSecretSize)

	raw := h.Encode(secret)
	require.Len(t, raw, 86)
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	require.Equal(t, secret, decoded)
}

func TestHasher_Digest(t *testing.T) {
	h, err := refresh.NewHasher()
	require.NoError(t, err)

	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h.Digest("abc"))
	require.Equal(t, h.Digest("abc"), h.Digest("abc"))
	require.NotEqual(t, h.Digest("abc"), h.Digest("abd"))

	peppered, err := refresh.NewHasher(refresh.WithPepper("server-side-pepper"))
	require.NoError(t, err)
	require.True(t, peppered.Keyed())
	require.NotEqual(t, h.Digest("abc"), peppered.Digest("abc"))
	require.Len(t, peppered.Digest("abc"), 64)

	b2, err := refresh.NewHasher(refresh.WithAlgorithm(refresh.AlgorithmBlake2b))
	require.NoError(t, err)
	require.Len(t, b2.Digest("abc"), 64)
	require.NotEqual(t, h.Digest("abc"), b2.Digest("abc"))

	b2Keyed, err := refresh.NewHasher(refresh.WithAlgorithm(refresh.AlgorithmBlake2b), refresh.WithPepper("pepper"))
	require.NoError(t, err)
	require.NotEqual(t, b2.Digest("abc"), b2Keyed.Digest("abc"))
}

func TestHasher_NewSecret(t *testing.T) {
	h, err := refresh.NewHasher(refresh.WithSecretSize(32))
	require.NoError(t, err)

	raw, digest, err := h.NewSecret()
	require.NoError(t, err)
	require.Equal(t, h.Digest(raw), digest)
	require.NotContains(t, digest, raw)
	require.Len(t, raw, 43)
}

func TestHasher_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		opts []refresh.HasherOption
	}{
		{"short secret", []refresh.HasherOption{refresh.WithSecretSize(16)}},
		{"unknown algorithm", []refresh.HasherOption{refresh.WithAlgorithm("md5")}},
		{"long blake2b pepper", []refresh.HasherOption{
			refresh.WithAlgorithm(refresh.AlgorithmBlake2b),
			refresh.WithPepper(strings.Repeat("p", 65)),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := refresh.NewHasher(tt.opts...)
			require.ErrorIs(t, err, errors.ErrConfig)
		})
	}
}

func TestDigestPrefix(t *testing.T) {
	require.Equal(t, "ba7816bf8f01", refresh.DigestPrefix("ba7816bf8f01cfea414140de5dae2223"))
	require.Equal(t, "abc", refresh.DigestPrefix("abc"))
}
