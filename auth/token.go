package auth

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "chat-sync"

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates access tokens with a shared secret.
// It is the identity resolver of authenticated routes and sessions.
type TokenManager struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewTokenManager(secret string, duration time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), duration: duration, now: time.Now}
}

// Generate creates a signed JWT for a user, valid for the configured duration.
func (m *TokenManager) Generate(user domain.UserID) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.duration)
	claims := &CustomClaims{
		Phone: user.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	// HS256: HMAC with SHA256.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %w", errors.ErrTokenGeneration, err)
	}
	return signed, expiresAt, nil
}

// Validate parses and validates the signature and expiration of a JWT string.
func (m *TokenManager) Validate(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid && claims.Phone != "" {
		return claims, nil
	}
	return nil, errors.ErrInvalidToken
}

// Resolve implements the IdentityResolver interface.
func (m *TokenManager) Resolve(_ context.Context, token string) (domain.UserID, error) {
	claims, err := m.Validate(token)
	if err != nil {
		return "", err
	}
	return domain.UserID(claims.Phone), nil
}

// GenerateRefreshToken returns an opaque random credential.
// Only its hash is ever stored.
func GenerateRefreshToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrTokenGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
