package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-token-service/token/jwt"
)

// Introspect reports whether an access credential is active (RFC 7662 shape).
// Accepts a form encoded or JSON "token" parameter.
func (s *Server) Introspect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var token string
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var body struct {
				Token string `json:"token"`
			}
			if err := decodeJSON(w, r, &body); err != nil {
				writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
				return
			}
			token = body.Token
		} else {
			if err := r.ParseForm(); err != nil {
				writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
				return
			}
			token = r.FormValue("token")
		}

		if token == "" {
			writeJSONError(w, "invalid_request", "token parameter is required", http.StatusBadRequest)
			return
		}

		introspection, err := s.inspector.Introspect(token)
		if err != nil || introspection == nil {
			// Inactive tokens are a normal result, not an error
			introspection = &jwt.TokenIntrospection{Active: false}
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, introspection, http.StatusOK)
	}
}

func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.jwks == nil {
			writeJSONError(w, "not_found", "no public keys are published for this signer", http.StatusNotFound)
			return
		}
		jwks, err := s.jwks.GetJWKS()
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to build JWKS")
			writeJSONError(w, "server_error", "failed to get JWKS", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(jwks)
	}
}

func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	}
}
