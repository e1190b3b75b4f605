package keys

import "fmt"

// Signer types accepted by NewSigner
const (
	TypeHS256 = "HS256"
	TypeRS256 = "RS256"
)

// NewSigner builds the access credential signer selected by configuration.
// Missing key material is reported as ErrMissingKey and must stop startup.
func NewSigner(signerType, hmacSecret, privateKeyPEM, keyID string) (Signer, error) {
	switch signerType {
	case TypeHS256, "":
		signer, err := NewHMACSigner(hmacSecret)
		if err != nil {
			return nil, err
		}
		return signer, nil

	case TypeRS256:
		if privateKeyPEM == "" {
			return nil, ErrMissingKey
		}
		keyPair, err := LoadKeyPairFromPEM(keyID, privateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to load RS256 key pair: %w", err)
		}
		signer, err := NewKeyPairSigner(keyPair)
		if err != nil {
			return nil, err
		}
		return signer, nil

	default:
		return nil, fmt.Errorf("unsupported signer type: %s", signerType)
	}
}
