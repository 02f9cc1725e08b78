// Package service provides the credential primitives of the auth flow:
// access token issuing and validation, password hashing and password strength rules.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/movierec/backend/internal/models"
)

var (
	// ErrInvalidToken is returned for malformed, tampered or expired tokens
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrConfiguration is returned when no signing secret is configured
	ErrConfiguration = errors.New("token signing secret is not configured")
)

// TokenSubject is the identity an access token is issued for
type TokenSubject struct {
	UserID   int
	Email    string
	Role     models.Role
	Username string
}

// Claims is the payload of an access token
type Claims struct {
	UserID   int         `json:"user_id"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	Username string      `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// TokenGenerator handles JWT token generation and validation
type TokenGenerator struct {
	secret            string
	accessTokenExpiry time.Duration
	now               func() time.Time
}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator(secret string, accessExpiry time.Duration) *TokenGenerator {
	return &TokenGenerator{
		secret:            secret,
		accessTokenExpiry: accessExpiry,
		now:               time.Now,
	}
}

// AccessTokenExpiry returns the configured lifetime of access tokens
func (tg *TokenGenerator) AccessTokenExpiry() time.Duration {
	return tg.accessTokenExpiry
}

// GenerateAccessToken issues an access token with the configured expiry
func (tg *TokenGenerator) GenerateAccessToken(subject TokenSubject) (string, error) {
	return tg.Issue(subject, tg.accessTokenExpiry)
}

// Issue signs an access token for subject that expires ttl from now.
// Every token gets a unique ID, so two tokens issued within the same second still differ.
func (tg *TokenGenerator) Issue(subject TokenSubject, ttl time.Duration) (string, error) {
	if tg.secret == "" {
		return "", ErrConfiguration
	}

	now := tg.now()
	claims := Claims{
		UserID:   subject.UserID,
		Email:    subject.Email,
		Role:     subject.Role,
		Username: subject.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tg.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// ValidateAccessToken verifies signature and expiry of an access token and returns its claims.
// A token is expired from the second its exp claim names onwards.
func (tg *TokenGenerator) ValidateAccessToken(tokenString string) (*Claims, error) {
	if tg.secret == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrConfiguration)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tg.secret), nil
	}, jwt.WithTimeFunc(tg.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse token: %w", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("%w: token is invalid", ErrInvalidToken)
	}

	if claims.UserID <= 0 || claims.Email == "" || claims.Role == "" {
		return nil, fmt.Errorf("%w: token is missing identity claims", ErrInvalidToken)
	}

	return claims, nil
}
