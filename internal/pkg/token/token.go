package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ScopeDiagnostics grants access to the local store endpoints.
const ScopeDiagnostics = "logs:read"

// Claims defines the custom claims of a diagnostics token.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// ErrScope is returned for a valid token lacking the required scope.
var ErrScope = errors.New("token scope does not grant diagnostics access")

// Generate signs a diagnostics token for subject, valid for ttl.
func Generate(subject, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Scope: ScopeDiagnostics,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// Validate parses a token string and checks signature, expiry and scope.
func Validate(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Scope != ScopeDiagnostics {
		return nil, ErrScope
	}
	return claims, nil
}
