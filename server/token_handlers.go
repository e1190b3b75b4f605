package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-token-service/internal/errors"
	"github.com/jrsteele09/go-token-service/token/refresh"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	maxBodyBytes    = 16 << 10
)

type issueRequest struct {
	SubjectID string   `json:"subject_id"`
	Roles     []string `json:"roles"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type revokeRequest struct {
	RefreshToken string `json:"refresh_token"`
	Reason       string `json:"reason,omitempty"`
}

// IssueToken starts a credential chain for a subject authenticated upstream
func (s *Server) IssueToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req issueRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.SubjectID) == "" {
			writeJSONError(w, "invalid_request", "subject_id is required", http.StatusBadRequest)
			return
		}

		tokens, err := s.tokens.Issue(r.Context(), req.SubjectID, req.Roles, s.clientIP(r))
		if err != nil {
			s.writeLifecycleError(w, r, err)
			return
		}
		writeTokens(w, tokens)
	}
}

// RefreshToken exchanges a refresh token for a new credential pair
func (s *Server) RefreshToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}
		if req.RefreshToken == "" {
			writeJSONError(w, "invalid_request", "refresh_token is required", http.StatusBadRequest)
			return
		}

		tokens, err := s.tokens.Rotate(r.Context(), req.RefreshToken, s.clientIP(r))
		if err != nil {
			s.writeLifecycleError(w, r, err)
			return
		}
		writeTokens(w, tokens)
	}
}

// RevokeToken retires a refresh token. Success has no body.
func (s *Server) RevokeToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req revokeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}
		if req.RefreshToken == "" {
			writeJSONError(w, "invalid_request", "refresh_token is required", http.StatusBadRequest)
			return
		}

		if err := s.tokens.Revoke(r.Context(), req.RefreshToken, s.clientIP(r), req.Reason); err != nil {
			s.writeLifecycleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeLifecycleError collapses every credential failure into one generic
// response so callers cannot tell which check rejected them.
func (s *Server) writeLifecycleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, refresh.ErrConcurrentReuse):
		writeJSONError(w, "refresh_conflict", "refresh token was used concurrently", http.StatusConflict)
	case errors.Is(err, refresh.ErrInvalidToken),
		errors.Is(err, refresh.ErrInactiveToken),
		errors.Is(err, refresh.ErrSuspiciousReuse),
		errors.Is(err, refresh.ErrStaleCredentials),
		errors.Is(err, refresh.ErrNotFound),
		errors.Is(err, refresh.ErrUnknownSubject):
		writeJSONError(w, "invalid_grant", apperrors.ErrInvalidSession.Error(), http.StatusUnauthorized)
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("token lifecycle operation failed")
		writeJSONError(w, "server_error", apperrors.ErrInternal.Error(), http.StatusInternalServerError)
	}
}

// clientIP is the first X-Forwarded-For hop when proxy headers are trusted,
// otherwise the connection's remote host.
func (s *Server) clientIP(r *http.Request) string {
	if s.config.GetTrustProxyHeaders() {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "malformed JSON body")
	}
	return nil
}

func writeTokens(w http.ResponseWriter, tokens *refresh.Tokens) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, tokens, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, map[string]string{
		"error":             errorCode,
		"error_description": description,
	}, statusCode)
}
