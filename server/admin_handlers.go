package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/jrsteele09/go-token-service/users"
)

// IdentityAdmin maintains the identities refresh chains are bound to
type IdentityAdmin interface {
	FindByID(ctx context.Context, id string) (*users.User, error)
	Save(ctx context.Context, u *users.User) error
	Remove(ctx context.Context, id string) error
	ChangeSecurityStamp(ctx context.Context, id string) (string, error)
}

type userRequest struct {
	Email       string   `json:"email"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Roles       []string `json:"roles"`
	Blocked     bool     `json:"blocked"`
}

// AdminPutUser creates or replaces the profile of the user named in the path.
// The stored security stamp is left alone.
func (s *Server) AdminPutUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req userRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}

		u := &users.User{
			ID:          r.PathValue("id"),
			Email:       req.Email,
			Username:    req.Username,
			DisplayName: req.DisplayName,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Blocked:     req.Blocked,
		}
		for _, role := range req.Roles {
			u.Roles = append(u.Roles, users.RoleType(role))
		}
		if err := s.admin.Save(r.Context(), u); err != nil {
			s.writeAdminError(w, r, err)
			return
		}
		writeJSON(w, u, http.StatusOK)
	}
}

// AdminGetUser returns the stored profile
func (s *Server) AdminGetUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := s.admin.FindByID(r.Context(), r.PathValue("id"))
		if err != nil {
			s.writeAdminError(w, r, err)
			return
		}
		writeJSON(w, u, http.StatusOK)
	}
}

// AdminDeleteUser removes the user. Outstanding refresh tokens stop rotating.
func (s *Server) AdminDeleteUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.admin.Remove(r.Context(), r.PathValue("id")); err != nil {
			s.writeAdminError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminResetSecurityStamp invalidates every refresh token issued to the user so
// far, e.g. after a password reset upstream.
func (s *Server) AdminResetSecurityStamp() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, err := s.admin.ChangeSecurityStamp(r.Context(), id); err != nil {
			s.writeAdminError(w, r, err)
			return
		}
		s.logger.Info().Str("subject_id", id).Msg("security stamp reset")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, users.ErrNotFound) {
		writeJSONError(w, "not_found", "user not found", http.StatusNotFound)
		return
	}
	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("identity admin operation failed")
	writeJSONError(w, "server_error", "internal error", http.StatusInternalServerError)
}
