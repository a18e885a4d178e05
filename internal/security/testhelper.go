package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestSigner issues ES256 access tokens from a key generated at construction.
// For unit tests only. Callers must not use in production.
type TestSigner struct {
	key *ecdsa.PrivateKey
}

// NewTestSigner generates a fresh P-256 key.
func NewTestSigner() (*TestSigner, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &TestSigner{key: key}, nil
}

// PublicKeyPEM returns the public key as a PKIX PEM block.
func (s *TestSigner) PublicKeyPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// Verifier returns a Verifier for tokens from this signer.
func (s *TestSigner) Verifier(issuer, audience string) *Verifier {
	return NewVerifier(&s.key.PublicKey, issuer, audience)
}

// Issue signs an access token for subject valid for ttl (negative ttl yields an expired token).
func (s *TestSigner) Issue(subject, issuer, audience string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := AccessClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(s.key)
}
