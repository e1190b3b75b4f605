package refresh

import (
	"time"

	"github.com/jrsteele09/go-token-service/internal/utils"
)

// State is the lifecycle state of a refresh record. Every state but Active is terminal.
type State string

const (
	StateActive     State = "Active"
	StateRotatedOut State = "RotatedOut"
	StateRevoked    State = "Revoked"
	StateExpired    State = "Expired"
)

// Revocation reasons recorded on terminal records
const (
	ReasonRotated       = "Rotated"
	ReasonRevokedByUser = "RevokedByUser"
)

// Record is the server-side state of one refresh credential. The raw secret is
// never stored, only its digest.
type Record struct {
	ID          string    `json:"id"`           // ULID
	TokenDigest string    `json:"token_digest"` // Unique, hex encoded
	SubjectID   string    `json:"subject_id"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedByIP string    `json:"created_by_ip,omitempty"`

	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevokedByIP      *string    `json:"revoked_by_ip,omitempty"`
	RevocationReason *string    `json:"revocation_reason,omitempty"`
	ReplacedByDigest *string    `json:"replaced_by_digest,omitempty"` // Forward pointer in the rotation chain

	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	LastUsedByIP *string    `json:"last_used_by_ip,omitempty"`

	SecurityStampSnapshot *string `json:"security_stamp_snapshot,omitempty"`

	Version int64 `json:"version"` // Optimistic concurrency stamp, assigned by the store
}

// IsExpired reports whether the record's lifetime has elapsed at now
func (r *Record) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsActive reports whether the record can still be rotated
func (r *Record) IsActive(now time.Time) bool {
	return r.RevokedAt == nil && !r.IsExpired(now)
}

// State derives the lifecycle state at now. Rotation wins over revocation,
// and an explicit terminal state wins over expiry.
func (r *Record) State(now time.Time) State {
	switch {
	case r.ReplacedByDigest != nil:
		return StateRotatedOut
	case r.RevokedAt != nil:
		return StateRevoked
	case r.IsExpired(now):
		return StateExpired
	default:
		return StateActive
	}
}

// Clone returns a deep copy, so stores never share mutable state with callers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.RevokedAt = utils.Clone(r.RevokedAt)
	c.RevokedByIP = utils.Clone(r.RevokedByIP)
	c.RevocationReason = utils.Clone(r.RevocationReason)
	c.ReplacedByDigest = utils.Clone(r.ReplacedByDigest)
	c.LastUsedAt = utils.Clone(r.LastUsedAt)
	c.LastUsedByIP = utils.Clone(r.LastUsedByIP)
	c.SecurityStampSnapshot = utils.Clone(r.SecurityStampSnapshot)
	return &c
}
