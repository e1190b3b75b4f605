package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
)

// RS256 is the only asymmetric algorithm access credentials are signed with
const RS256 = "RS256"

// MinRSABits is the smallest modulus accepted for signing keys
const MinRSABits = 2048

// ErrWeakKey is returned for RSA keys below MinRSABits.
var ErrWeakKey = errors.New("rsa key too small")

// KeyPair is an RS256 signing key with its public half
type KeyPair struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// JWKS is the document served on the well-known JWKS route
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK is an RSA public signing key
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// GenerateRSAKeyPair creates a fresh key pair. An empty keyID is replaced by
// the key's thumbprint.
func GenerateRSAKeyPair(keyID string, bits int) (*KeyPair, error) {
	if bits < MinRSABits {
		bits = MinRSABits
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return newKeyPair(keyID, privateKey), nil
}

// LoadKeyPairFromPEM loads a PKCS#1 or PKCS#8 RSA private key. The public half
// is derived from it.
func LoadKeyPairFromPEM(keyID, privateKeyPEM string) (*KeyPair, error) {
	privateKey, err := LoadRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	if privateKey.N.BitLen() < MinRSABits {
		return nil, fmt.Errorf("%w: %d bits", ErrWeakKey, privateKey.N.BitLen())
	}
	return newKeyPair(keyID, privateKey), nil
}

// LoadRSAPrivateKeyFromPEM decodes the first PEM block of pemData
func LoadRSAPrivateKeyFromPEM(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	if privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return privateKey, nil
	}

	// openssl genpkey emits PKCS#8
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
	}
	privateKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return privateKey, nil
}

func newKeyPair(keyID string, privateKey *rsa.PrivateKey) *KeyPair {
	kp := &KeyPair{
		KeyID:      keyID,
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}
	if kp.KeyID == "" {
		kp.KeyID = kp.Thumbprint()
	}
	return kp
}

// GetSigningMethod returns the JWT signing method for this key pair
func (kp *KeyPair) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodRS256
}

// ExportPrivateKeyPEM encodes the private key as PKCS#8, the form
// JWT_PRIVATE_KEY_PEM is usually provisioned in.
func (kp *KeyPair) ExportPrivateKeyPEM() (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(kp.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

// Thumbprint is the RFC 7638 SHA-256 thumbprint of the public key
func (kp *KeyPair) Thumbprint() string {
	n, e := kp.modulus(), kp.exponent()
	// Members in lexicographic order, no whitespace.
	canonical := `{"e":"` + e + `","kty":"RSA","n":"` + n + `"}`
	sum := sha256.Sum256([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ToJWK returns the public half in JWK form
func (kp *KeyPair) ToJWK() JWK {
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Kid: kp.KeyID,
		Alg: RS256,
		N:   kp.modulus(),
		E:   kp.exponent(),
	}
}

func (kp *KeyPair) modulus() string {
	return base64.RawURLEncoding.EncodeToString(kp.PublicKey.N.Bytes())
}

func (kp *KeyPair) exponent() string {
	return base64.RawURLEncoding.EncodeToString(big.NewInt(int64(kp.PublicKey.E)).Bytes())
}
