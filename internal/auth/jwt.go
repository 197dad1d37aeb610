package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "resumiro"

	// DefaultTokenTTL is the lifetime of tokens minted for the audit feed.
	DefaultTokenTTL = 12 * time.Hour
)

// TokenService signs and verifies HS256 tokens whose subject is a principal.
// Holding a valid token proves only who the caller is; what the caller may
// do is decided by the identity registry.
type TokenService struct {
	secret []byte
}

// NewTokenService rejects secrets shorter than 16 bytes.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Generate mints a token for principal valid for DefaultTokenTTL.
func (s *TokenService) Generate(principal string) (string, error) {
	return s.GenerateWithDuration(principal, DefaultTokenTTL)
}

// GenerateWithDuration mints a token valid for d. A negative d yields an
// already-expired token, which tests use.
func (s *TokenService) GenerateWithDuration(principal string, d time.Duration) (string, error) {
	if principal == "" {
		return "", errors.New("auth: principal must not be empty")
	}

	now := time.Now()
	c := jwt.RegisteredClaims{
		Subject:   principal,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature, algorithm, issuer and expiry and returns the
// principal in the subject claim.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.New("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}

	return c.Subject, nil
}
