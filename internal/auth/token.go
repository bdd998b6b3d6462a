package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure: bad signature,
// malformed token, expired token, missing subject. Callers must not learn
// which one it was.
var ErrInvalidToken = errors.New("invalid token")

// TokenService issues and verifies signed, time-limited bearer tokens. No
// server-side state is kept: a token stays valid until its expiry elapses.
type TokenService struct {
	secret   []byte
	method   jwt.SigningMethod
	lifetime time.Duration
}

// NewTokenService builds a service for the given HMAC algorithm name
// (HS256, HS384 or HS512).
func NewTokenService(secret, algorithm string, lifetime time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("token service: secret is required")
	}
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("token service: unknown algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("token service: algorithm %q is not an HMAC scheme", algorithm)
	}
	return &TokenService{
		secret:   []byte(secret),
		method:   method,
		lifetime: lifetime,
	}, nil
}

// Issue signs a claim set {sub, iat, exp} for subject and returns the token
// together with its lifetime in seconds.
func (s *TokenService) Issue(subject string) (string, int, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
	}
	token, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return token, int(s.lifetime.Seconds()), nil
}

// Verify checks signature and expiry and returns the subject claim.
func (s *TokenService) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
