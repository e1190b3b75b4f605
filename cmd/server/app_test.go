package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-token-service/internal/config"
	"github.com/jrsteele09/go-token-service/server"
	"github.com/jrsteele09/go-token-service/token/keys"
	"github.com/jrsteele09/go-token-service/token/refresh"
	"github.com/stretchr/testify/require"
)

func testVars() map[string]string {
	return map[string]string{
		"JWT_SIGNING_KEY": "0123456789abcdef0123456789abcdef",
		"ISSUE_API_KEY":   "internal-issue-key",
	}
}

func serve(h http.Handler, method, target, body string, internal bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if internal {
		req.Header.Set(server.HeaderInternalAPIKey, "internal-issue-key")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func refreshTokenFrom(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tokens refresh.Tokens
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	require.NotEmpty(t, tokens.RefreshToken)
	return tokens.RefreshToken
}

func issueDevUser(t *testing.T, h http.Handler) string {
	t.Helper()
	return refreshTokenFrom(t, serve(h, http.MethodPost, server.RouteAuthToken, `{"subject_id":"dev-user"}`, true))
}

func rotate(h http.Handler, raw string) *httptest.ResponseRecorder {
	return serve(h, http.MethodPost, server.RouteAuthRefresh, `{"refresh_token":"`+raw+`"}`, false)
}

func TestNewApp_Memory(t *testing.T) {
	c, err := config.NewFromMap(testVars())
	require.NoError(t, err)

	a, err := newApp(context.Background(), c)
	require.NoError(t, err)
	defer a.Close()

	issueDevUser(t, a.handler)
}

func TestNewApp_RedisAndRS256(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	kp, err := keys.GenerateRSAKeyPair("kid-1", 2048)
	require.NoError(t, err)
	privatePEM, err := kp.ExportPrivateKeyPEM()
	require.NoError(t, err)

	vars := testVars()
	vars["STORE_BACKEND"] = "redis"
	vars["REDIS_ADDR"] = mr.Addr()
	vars["JWT_SIGNER"] = "RS256"
	vars["JWT_KEY_ID"] = "kid-1"
	vars["JWT_PRIVATE_KEY_PEM"] = privatePEM
	c, err := config.NewFromMap(vars)
	require.NoError(t, err)

	a, err := newApp(context.Background(), c)
	require.NoError(t, err)
	defer a.Close()

	issueDevUser(t, a.handler)
	require.NotEmpty(t, mr.Keys())

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, server.RouteWellKnownJWKS, nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApp_RedisRestartKeepsSessions(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	vars := testVars()
	vars["STORE_BACKEND"] = "redis"
	vars["REDIS_ADDR"] = mr.Addr()
	c, err := config.NewFromMap(vars)
	require.NoError(t, err)

	first, err := newApp(context.Background(), c)
	require.NoError(t, err)
	raw := issueDevUser(t, first.handler)
	first.Close()

	second, err := newApp(context.Background(), c)
	require.NoError(t, err)
	defer second.Close()

	next := refreshTokenFrom(t, rotate(second.handler, raw))
	require.NotEqual(t, raw, next)
}

func TestNewApp_ProductionProvisionsUsersThroughAdmin(t *testing.T) {
	vars := testVars()
	vars["ENV"] = "PROD"
	c, err := config.NewFromMap(vars)
	require.NoError(t, err)

	a, err := newApp(context.Background(), c)
	require.NoError(t, err)
	defer a.Close()

	issueBody := `{"subject_id":"user-7"}`
	require.Equal(t, http.StatusUnauthorized, serve(a.handler, http.MethodPost, server.RouteAuthToken, issueBody, true).Code)

	userPath := "/admin/users/user-7"
	require.Equal(t, http.StatusUnauthorized,
		serve(a.handler, http.MethodPut, userPath, `{"email":"u7@example.com"}`, false).Code)
	rec := serve(a.handler, http.MethodPut, userPath, `{"email":"u7@example.com","roles":["user"]}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotContains(t, rec.Body.String(), "stamp")

	raw := refreshTokenFrom(t, serve(a.handler, http.MethodPost, server.RouteAuthToken, issueBody, true))

	// Re-saving the profile does not end the session.
	require.Equal(t, http.StatusOK,
		serve(a.handler, http.MethodPut, userPath, `{"email":"u7@example.com","display_name":"Seven"}`, true).Code)
	raw = refreshTokenFrom(t, rotate(a.handler, raw))

	require.Equal(t, http.StatusNoContent, serve(a.handler, http.MethodPost, userPath+"/security-stamp", "", true).Code)
	require.Equal(t, http.StatusUnauthorized, rotate(a.handler, raw).Code)

	require.Equal(t, http.StatusNoContent, serve(a.handler, http.MethodDelete, userPath, "", true).Code)
	require.Equal(t, http.StatusNotFound, serve(a.handler, http.MethodGet, userPath, "", true).Code)
}
