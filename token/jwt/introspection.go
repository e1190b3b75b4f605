package jwt

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-token-service/internal/utils"
	"github.com/jrsteele09/go-token-service/token/keys"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// TokenIntrospection represents the metadata information of an access token.
// The 'active' field indicates the state of the token - if it's false, other fields are not populated.
type TokenIntrospection struct {
	Active bool     `json:"active"`          // True or false - Is the token valid
	Aud    *string  `json:"aud,omitempty"`   // Audience
	Exp    *int64   `json:"exp,omitempty"`   // Expiration
	Iat    *int64   `json:"iat,omitempty"`   // Issued at time
	Iss    *string  `json:"iss,omitempty"`   // Issuer of the token
	Jti    *string  `json:"jti,omitempty"`   // Unique token ID
	Roles  []string `json:"roles,omitempty"` // Roles assigned to the User
	Sub    *string  `json:"sub,omitempty"`   // Users unique ID
	Email  string   `json:"email,omitempty"`
	Name   string   `json:"name,omitempty"`
}

// Inspector handles access credential introspection and validation
type Inspector struct {
	signer   keys.Signer
	issuer   string
	audience string
}

// NewInspector creates a new JWT inspector
func NewInspector(signer keys.Signer, issuer, audience string) *Inspector {
	return &Inspector{
		signer:   signer,
		issuer:   issuer,
		audience: audience,
	}
}

// Introspect validates and extracts information from an access credential.
// Invalid tokens produce an inactive result together with the reason.
func (i *Inspector) Introspect(rawToken string) (*TokenIntrospection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &TokenIntrospection{Active: false}, nil
	}

	token, err := jwtlib.ParseWithClaims(rawToken, jwtlib.MapClaims{}, i.signer.GetVerificationKey,
		jwtlib.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithAudience(i.audience),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(NowTimeFunc),
	)
	if err != nil || !token.Valid {
		return &TokenIntrospection{Active: false}, err
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return &TokenIntrospection{Active: false}, fmt.Errorf("error extracting claims from token")
	}

	iss, _ := claims.GetIssuer()
	sub, _ := claims.GetSubject()
	jti, _ := claims["jti"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	var aud string
	if audiences, err := claims.GetAudience(); err == nil && len(audiences) > 0 {
		aud = audiences[0]
	}

	result := &TokenIntrospection{
		Active: true,
		Aud:    &aud,
		Iss:    &iss,
		Jti:    &jti,
		Roles:  utils.ToStringSlice(claims["roles"]),
		Sub:    &sub,
		Email:  email,
		Name:   name,
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		result.Exp = utils.Ptr(exp.Unix())
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		result.Iat = utils.Ptr(iat.Unix())
	}
	return result, nil
}
