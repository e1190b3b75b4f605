package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-token-service/internal/config"
	"github.com/jrsteele09/go-token-service/internal/errors"
	"github.com/stretchr/testify/require"
)

func baseVars() map[string]string {
	return map[string]string{
		"JWT_SIGNING_KEY": "0123456789abcdef0123456789abcdef",
		"ISSUE_API_KEY":   "internal-issue-key",
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := config.NewFromMap(baseVars())
	require.NoError(t, err)

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "info", c.GetLogLevel())
	require.False(t, c.GetTrustProxyHeaders())

	require.Equal(t, config.SignerHS256, c.GetSignerType())
	require.Equal(t, 10*time.Minute, c.GetAccessTokenTTL())
	require.Equal(t, 7*24*time.Hour, c.GetRefreshTokenTTL())
	require.Equal(t, 64, c.GetRefreshTokenBytes())
	require.Equal(t, config.DigestSHA256, c.GetDigestAlgorithm())

	require.Equal(t, 5*time.Minute, c.GetTheftDetectionWindow())
	require.Equal(t, 4096, c.GetMaxRefreshTokenLength())

	require.Equal(t, config.StoreMemory, c.GetStoreBackend())
	require.Empty(t, c.GetAllowedOrigins())
}

func TestNew_Overrides(t *testing.T) {
	vars := baseVars()
	vars["PORT"] = ":9000"
	vars["ACCESS_TOKEN_TTL"] = "15m"
	vars["THEFT_DETECTION_WINDOW"] = "2m"
	vars["DIGEST_ALGORITHM"] = "blake2b"
	vars["ALLOWED_ORIGINS"] = "https://a.example.com, https://b.example.com"
	vars["STORE_BACKEND"] = "redis"
	vars["REDIS_ADDR"] = "localhost:6379"

	c, err := config.NewFromMap(vars)
	require.NoError(t, err)

	require.Equal(t, ":9000", c.GetPort())
	require.Equal(t, 15*time.Minute, c.GetAccessTokenTTL())
	require.Equal(t, 2*time.Minute, c.GetTheftDetectionWindow())
	require.Equal(t, config.DigestBlake2b, c.GetDigestAlgorithm())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example.com"))
	require.Equal(t, "localhost:6379", c.GetRedisAddr())
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"missing signing key", func(m map[string]string) { delete(m, "JWT_SIGNING_KEY") }},
		{"missing issue key", func(m map[string]string) { delete(m, "ISSUE_API_KEY") }},
		{"rs256 without pem", func(m map[string]string) { m["JWT_SIGNER"] = "RS256" }},
		{"unknown signer", func(m map[string]string) { m["JWT_SIGNER"] = "none" }},
		{"postgres without url", func(m map[string]string) { m["STORE_BACKEND"] = "postgres" }},
		{"redis without addr", func(m map[string]string) { m["STORE_BACKEND"] = "redis" }},
		{"unknown digest", func(m map[string]string) { m["DIGEST_ALGORITHM"] = "md5" }},
		{"short secret", func(m map[string]string) { m["REFRESH_TOKEN_BYTES"] = "8" }},
		{"bad duration", func(m map[string]string) { m["ACCESS_TOKEN_TTL"] = "soon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := baseVars()
			tt.mutate(vars)
			_, err := config.NewFromMap(vars)
			require.Error(t, err)
			require.ErrorIs(t, err, errors.ErrConfig)
		})
	}
}
