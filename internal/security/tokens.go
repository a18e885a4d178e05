package security

import (
	"crypto"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired or not meant for this API.
	ErrInvalidToken = errors.New("invalid token")
)

// leeway tolerates clock skew between the token issuer and this service.
const leeway = 30 * time.Second

// AccessClaims holds the claims of an API access token. The subject is the acting user.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// Verifier validates access tokens signed with RS256 or ES256 by an external issuer.
type Verifier struct {
	publicKey crypto.PublicKey
	parser    *jwt.Parser
}

// NewVerifier returns a Verifier checking signature, expiry, iss and aud.
func NewVerifier(publicKey crypto.PublicKey, issuer, audience string) *Verifier {
	return &Verifier{
		publicKey: publicKey,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{KeyAlg(publicKey)}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(leeway),
		),
	}
}

// LoadVerifier parses the public key (inline PEM or file path) and returns a Verifier.
func LoadVerifier(publicKey, issuer, audience string) (*Verifier, error) {
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	return NewVerifier(pub, issuer, audience), nil
}

// Verify validates tokenString and returns its subject.
func (v *Verifier) Verify(tokenString string) (string, error) {
	var claims AccessClaims
	token, err := v.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
