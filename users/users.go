package users

import (
	"strings"

	"github.com/google/uuid"
)

// RoleType represents a role granted to a user
type RoleType string

const (
	RoleAdmin   RoleType = "admin"   // Can manage other users' sessions
	RoleAuditor RoleType = "auditor" // Read-only access to audit data
	RoleUser    RoleType = "user"    // Regular user
)

type User struct {
	ID          string     `json:"id,omitempty"`           // Unique identifier for the user
	Email       string     `json:"email,omitempty"`        // User's email address
	Username    string     `json:"username,omitempty"`     // Unique username
	DisplayName string     `json:"display_name,omitempty"` // Preferred display name, may be empty
	FirstName   string     `json:"first_name,omitempty"`   // First name of the user
	LastName    string     `json:"last_name,omitempty"`    // Last name of the user
	Roles       []RoleType `json:"roles,omitempty"`        // Roles embedded into access credentials
	Blocked     bool       `json:"blocked,omitempty"`      // Blocked users can neither be issued nor rotate refresh tokens

	// SecurityStamp changes whenever security-sensitive account state changes
	// (password reset, role removal, forced logout). Refresh tokens carry a snapshot
	// of it and stop working once it moves.
	SecurityStamp string `json:"-"`
}

// NewSecurityStamp returns a fresh random security stamp.
func NewSecurityStamp() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Name returns the name placed in access credentials: the display name,
// then first and last name, then the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	return u.Username
}

// RoleNames returns the user's roles as plain strings.
func (u *User) RoleNames() []string {
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, string(r))
	}
	return roles
}
