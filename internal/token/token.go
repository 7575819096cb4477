// Package token implements the opaque signed-token issuer spec.md §9
// treats as a collaborator: mint(subject, ttl) and verify(token) ->
// subject | error. No token state is kept beyond what the JWT itself
// carries — the coordinator does not persist issued tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Subject is the (bank, username) pair a token authorizes, spec.md §3.
type Subject struct {
	Bank     string
	Username string
}

func (s Subject) claim() string { return s.Bank + ":" + s.Username }

func subjectFromClaim(raw string) (Subject, error) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == ':' {
			return Subject{Bank: raw[:i], Username: raw[i+1:]}, nil
		}
	}
	return Subject{}, fmt.Errorf("token: malformed subject claim %q", raw)
}

var ErrUnauthorized = errors.New("unauthorized")

// Issuer mints and verifies bearer tokens bound to a subject and
// expiry, matching spec.md §3's Token data model.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
}

func NewIssuer(signingKey []byte, ttl time.Duration) *Issuer {
	return &Issuer{signingKey: signingKey, ttl: ttl}
}

// Mint issues a token for subject valid for the issuer's configured
// TOKEN_TTL.
func (i *Issuer) Mint(subject Subject) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject.claim(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return "", fmt.Errorf("token: mint: %w", err)
	}
	return signed, nil
}

// Verify parses and validates tok, returning the bound subject or
// ErrUnauthorized if it is malformed, mis-signed, or expired.
func (i *Issuer) Verify(tok string) (Subject, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.signingKey, nil
	})
	if err != nil {
		return Subject{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	subject, err := subjectFromClaim(claims.Subject)
	if err != nil {
		return Subject{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return subject, nil
}
