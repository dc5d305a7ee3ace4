// Package security verifies the bearer tokens presented to the telemetry API.
package security

import (
	"crypto"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a token is malformed, expired or issued for someone else.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims carried by API tokens. ProjectID is empty for tokens that span projects.
type Claims struct {
	jwt.RegisteredClaims
	ProjectID string `json:"project_id,omitempty"`
}

// Principal is the authenticated caller.
type Principal struct {
	Subject   string
	ProjectID string
}

// Verifier validates RS256 or ES256 tokens against one public key, issuer and audience.
type Verifier struct {
	publicKey crypto.PublicKey
	parser    *jwt.Parser
}

// NewVerifier returns a Verifier for pub. pub must be an RSA or ECDSA key.
func NewVerifier(pub crypto.PublicKey, issuer, audience string) (*Verifier, error) {
	method := signingMethod(pub)
	if method == nil {
		return nil, ErrInvalidKey
	}
	return &Verifier{
		publicKey: pub,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{method.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}, nil
}

// Verify checks signature, exp, iss and aud and returns the caller.
func (v *Verifier) Verify(tokenString string) (*Principal, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Principal{Subject: claims.Subject, ProjectID: claims.ProjectID}, nil
}

// Signer issues API tokens. The server never signs; the seed tool and tests do.
type Signer struct {
	key      crypto.Signer
	method   jwt.SigningMethod
	issuer   string
	audience string
}

func NewSigner(key crypto.Signer, issuer, audience string) (*Signer, error) {
	method := signingMethod(key.Public())
	if method == nil {
		return nil, ErrInvalidKey
	}
	return &Signer{key: key, method: method, issuer: issuer, audience: audience}, nil
}

// Issue signs a token for subject, optionally scoped to projectID, valid for ttl.
func (s *Signer) Issue(subject, projectID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		ProjectID: projectID,
	}
	token, err := jwt.NewWithClaims(s.method, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}
