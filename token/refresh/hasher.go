package refresh

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/jrsteele09/go-token-service/internal/errors"
	"golang.org/x/crypto/blake2b"
)

// Digest algorithms
const (
	AlgorithmSHA256  = "sha256"
	AlgorithmBlake2b = "blake2b"
)

const (
	DefaultSecretSize = 64
	MinSecretSize     = 32
)

// Hasher generates raw refresh secrets and derives their storage digests
type Hasher struct {
	size      int
	algorithm string
	pepper    []byte
	newHash   func() (hash.Hash, error)
}

// HasherOption configures a Hasher
type HasherOption func(*Hasher)

// WithSecretSize sets the number of random bytes per secret
func WithSecretSize(n int) HasherOption {
	return func(h *Hasher) {
		h.size = n
	}
}

// WithAlgorithm selects the digest algorithm, sha256 or blake2b
func WithAlgorithm(algorithm string) HasherOption {
	return func(h *Hasher) {
		h.algorithm = algorithm
	}
}

// WithPepper switches to keyed digests. An empty pepper leaves digests unkeyed.
func WithPepper(pepper string) HasherOption {
	return func(h *Hasher) {
		if pepper != "" {
			h.pepper = []byte(pepper)
		}
	}
}

// NewHasher creates a Hasher. Invalid settings are configuration errors.
func NewHasher(opts ...HasherOption) (*Hasher, error) {
	h := &Hasher{
		size:      DefaultSecretSize,
		algorithm: AlgorithmSHA256,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.size < MinSecretSize {
		return nil, fmt.Errorf("%w: refresh secret size %d is below %d bytes", errors.ErrConfig, h.size, MinSecretSize)
	}

	switch h.algorithm {
	case AlgorithmSHA256:
		if h.pepper != nil {
			h.newHash = func() (hash.Hash, error) { return hmac.New(sha256.New, h.pepper), nil }
		} else {
			h.newHash = func() (hash.Hash, error) { return sha256.New(), nil }
		}
	case AlgorithmBlake2b:
		if len(h.pepper) > blake2b.Size {
			return nil, fmt.Errorf("%w: blake2b pepper longer than %d bytes", errors.ErrConfig, blake2b.Size)
		}
		h.newHash = func() (hash.Hash, error) { return blake2b.New256(h.pepper) }
	default:
		return nil, fmt.Errorf("%w: unsupported digest algorithm %q", errors.ErrConfig, h.algorithm)
	}
	return h, nil
}

// Algorithm returns the configured digest algorithm
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Keyed reports whether digests are peppered
func (h *Hasher) Keyed() bool {
	return h.pepper != nil
}

// GenerateRawSecret returns fresh random bytes from the OS CSPRNG
func (h *Hasher) GenerateRawSecret() ([]byte, error) {
	secret := make([]byte, h.size)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return secret, nil
}

// Encode turns a secret into the raw refresh token handed to the client
func (h *Hasher) Encode(secret []byte) string {
	return base64.RawURLEncoding.EncodeToString(secret)
}

// Digest returns the hex encoded 256-bit digest of a raw refresh token.
// It is deterministic for a given configuration.
func (h *Hasher) Digest(raw string) string {
	hh, err := h.newHash()
	if err != nil {
		// Key length is validated in NewHasher
		panic(err)
	}
	hh.Write([]byte(raw))
	return hex.EncodeToString(hh.Sum(nil))
}

// NewSecret generates a raw refresh token and its digest
func (h *Hasher) NewSecret() (raw string, digest string, err error) {
	secret, err := h.GenerateRawSecret()
	if err != nil {
		return "", "", err
	}
	raw = h.Encode(secret)
	return raw, h.Digest(raw), nil
}

// DigestPrefix shortens a digest for log correlation
func DigestPrefix(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
