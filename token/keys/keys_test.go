package keys_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-token-service/token/keys"
	"github.com/stretchr/testify/require"
)

func TestNewSigner_HS256(t *testing.T) {
	signer, err := keys.NewSigner(keys.TypeHS256, "secret-key", "", "")
	require.NoError(t, err)

	raw, err := signer.Sign(jwt.MapClaims{"sub": "user-1"})
	require.NoError(t, err)

	parsed, err := jwt.Parse(raw, signer.GetVerificationKey)
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	require.Equal(t, jwt.SigningMethodHS256, signer.GetSigningMethod())
}

func TestNewSigner_MissingKey(t *testing.T) {
	_, err := keys.NewSigner(keys.TypeHS256, "", "", "")
	require.ErrorIs(t, err, keys.ErrMissingKey)

	_, err = keys.NewSigner(keys.TypeRS256, "", "", "kid")
	require.ErrorIs(t, err, keys.ErrMissingKey)

	_, err = keys.NewSigner("none", "secret", "", "")
	require.Error(t, err)
}

func TestNewSigner_RS256FromPEM(t *testing.T) {
	kp, err := keys.GenerateRSAKeyPair("kid-1", 2048)
	require.NoError(t, err)
	pemData, err := kp.ExportPrivateKeyPEM()
	require.NoError(t, err)

	signer, err := keys.NewSigner(keys.TypeRS256, "", pemData, "kid-1")
	require.NoError(t, err)

	raw, err := signer.Sign(jwt.MapClaims{"sub": "user-1"})
	require.NoError(t, err)

	parsed, err := jwt.Parse(raw, signer.GetVerificationKey)
	require.NoError(t, err)
	require.Equal(t, "kid-1", parsed.Header["kid"])

	provider, ok := signer.(keys.JWKSProvider)
	require.True(t, ok)
	jwks, err := provider.GetJWKS()
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "RSA", jwks.Keys[0].Kty)
	require.Equal(t, "kid-1", jwks.Keys[0].Kid)
}

func TestVerificationKey_RejectsAlgorithmSwitch(t *testing.T) {
	hmacSigner, err := keys.NewHMACSigner("secret-key")
	require.NoError(t, err)

	kp, err := keys.GenerateRSAKeyPair("kid-1", 2048)
	require.NoError(t, err)
	rsaSigner, err := keys.NewKeyPairSigner(kp)
	require.NoError(t, err)

	raw, err := hmacSigner.Sign(jwt.MapClaims{"sub": "user-1"})
	require.NoError(t, err)

	_, err = jwt.Parse(raw, rsaSigner.GetVerificationKey)
	require.Error(t, err)
}

func TestLoadRSAPrivateKeyFromPEM_Garbage(t *testing.T) {
	_, err := keys.LoadRSAPrivateKeyFromPEM("not a pem")
	require.Error(t, err)
}

func TestGenerateRSAKeyPair_ThumbprintKeyID(t *testing.T) {
	kp, err := keys.GenerateRSAKeyPair("", 2048)
	require.NoError(t, err)
	require.Equal(t, kp.Thumbprint(), kp.KeyID)
	require.Len(t, kp.KeyID, 43)

	pemData, err := kp.ExportPrivateKeyPEM()
	require.NoError(t, err)
	reloaded, err := keys.LoadKeyPairFromPEM("", pemData)
	require.NoError(t, err)
	require.Equal(t, kp.KeyID, reloaded.KeyID)

	jwk := reloaded.ToJWK()
	require.Equal(t, keys.RS256, jwk.Alg)
	require.Equal(t, "sig", jwk.Use)
	require.Equal(t, "AQAB", jwk.E)
}

func TestLoadKeyPairFromPEM_WeakKey(t *testing.T) {
	weak, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	pemData := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(weak)})

	_, err = keys.LoadKeyPairFromPEM("kid-1", string(pemData))
	require.ErrorIs(t, err, keys.ErrWeakKey)
}
