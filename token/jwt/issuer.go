package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-service/internal/errors"
	"github.com/jrsteele09/go-token-service/token/keys"
	"github.com/jrsteele09/go-token-service/users"
)

// Issuer builds short-lived signed access credentials
type Issuer struct {
	signer   keys.Signer
	issuer   string
	audience string
	ttl      time.Duration
}

// NewIssuer creates a new access credential issuer. A missing signer or a
// non-positive TTL is a configuration error.
func NewIssuer(signer keys.Signer, issuer, audience string, ttl time.Duration) (*Issuer, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: access credential signer is required", errors.ErrConfig)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: access credential ttl must be positive", errors.ErrConfig)
	}
	return &Issuer{
		signer:   signer,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
	}, nil
}

// TTL returns the lifetime of issued access credentials
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a signed access credential for user carrying one roles entry per role.
// The returned expiry is exactly now + TTL.
func (i *Issuer) Issue(user *users.User, roles []string, now time.Time) (string, time.Time, error) {
	if roles == nil {
		roles = []string{}
	}
	expiresAt := now.Add(i.ttl)

	claims := jwtlib.MapClaims{
		"iss":   i.issuer,            // The issuer of the token
		"aud":   i.audience,          // The audience for which the token is intended
		"sub":   user.ID,             // The subject, the owning identity
		"email": user.Email,          // Email at issuance time
		"name":  user.Name(),         // Display name at issuance time
		"roles": roles,               // Roles granted to the subject
		"iat":   now.Unix(),          // Issued At: the time at which the token was issued
		"exp":   expiresAt.Unix(),    // Expiry: when the token will expire
		"jti":   uuid.New().String(), // Unique per issuance, used for replay and log correlation
	}

	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}
