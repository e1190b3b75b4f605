package config

import "time"

// Signer types for access credentials
const (
	SignerHS256 = "HS256"
	SignerRS256 = "RS256"
)

// Digest algorithms for refresh secrets
const (
	DigestSHA256  = "sha256"
	DigestBlake2b = "blake2b"
)

type TokenConfig interface {
	GetSignerType() string
	GetSigningKey() string
	GetPrivateKeyPEM() string
	GetKeyID() string
	GetIssuer() string
	GetAudience() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetRefreshTokenBytes() int
	GetDigestAlgorithm() string
	GetDigestPepper() string
}

type Token struct {
	Signer            string        `env:"JWT_SIGNER" envDefault:"HS256" validate:"oneof=HS256 RS256"`
	SigningKey        string        `env:"JWT_SIGNING_KEY" validate:"required_if=Signer HS256"`
	PrivateKeyPEM     string        `env:"JWT_PRIVATE_KEY_PEM" validate:"required_if=Signer RS256"`
	KeyID             string        `env:"JWT_KEY_ID"`
	Issuer            string        `env:"JWT_ISSUER" envDefault:"go-token-service" validate:"required"`
	Audience          string        `env:"JWT_AUDIENCE" envDefault:"api" validate:"required"`
	AccessTokenTTL    time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"10m" validate:"min=1s"`
	RefreshTokenTTL   time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h" validate:"min=1m"`
	RefreshTokenBytes int           `env:"REFRESH_TOKEN_BYTES" envDefault:"64" validate:"min=32,max=256"`
	DigestAlgorithm   string        `env:"DIGEST_ALGORITHM" envDefault:"sha256" validate:"oneof=sha256 blake2b"`
	DigestPepper      string        `env:"DIGEST_PEPPER" validate:"max=64"`
}

var _ TokenConfig = Token{}

func (t Token) GetSignerType() string {
	return t.Signer
}

func (t Token) GetSigningKey() string {
	return t.SigningKey
}

func (t Token) GetPrivateKeyPEM() string {
	return t.PrivateKeyPEM
}

func (t Token) GetKeyID() string {
	return t.KeyID
}

func (t Token) GetIssuer() string {
	return t.Issuer
}

func (t Token) GetAudience() string {
	return t.Audience
}

func (t Token) GetAccessTokenTTL() time.Duration {
	return t.AccessTokenTTL
}

func (t Token) GetRefreshTokenTTL() time.Duration {
	return t.RefreshTokenTTL // 7 days by default
}

func (t Token) GetRefreshTokenBytes() int {
	return t.RefreshTokenBytes
}

func (t Token) GetDigestAlgorithm() string {
	return t.DigestAlgorithm
}

// GetDigestPepper returns the optional server-side key mixed into refresh digests.
// Changing it invalidates every outstanding refresh token.
func (t Token) GetDigestPepper() string {
	return t.DigestPepper
}
