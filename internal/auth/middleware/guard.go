// Package middleware provides the access control guard for protected routes
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/movierec/backend/internal/auth/service"
	"github.com/movierec/backend/internal/models"
)

var (
	// ErrUnauthenticated is returned when the bearer token is missing, invalid, expired or revoked
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the token's role does not grant access
	ErrForbidden = errors.New("insufficient permissions")
)

// TokenValidator is the interface that wraps access token decoding.
type TokenValidator interface {
	// Method ValidateAccessToken verifies a token and returns its claims.
	//
	// Any malformed, tampered or expired token results in an error wrapping service.ErrInvalidToken.
	ValidateAccessToken(token string) (*service.Claims, error)
}

// RevocationChecker is the interface that wraps the token denylist lookup.
type RevocationChecker interface {
	// Method IsRevoked reports whether the token with the given ID was revoked at logout.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Guard authenticates bearer tokens and checks their role.
// It trusts the token's claims and expiry alone and never consults the session store.
type Guard struct {
	tokens      TokenValidator
	revocations RevocationChecker
}

// NewGuard creates a new guard.
// revocations may be nil, in which case logged out tokens stay usable until they expire.
func NewGuard(tokens TokenValidator, revocations RevocationChecker) *Guard {
	return &Guard{
		tokens:      tokens,
		revocations: revocations,
	}
}

// Authenticate resolves the identity carried by token
func (g *Guard) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := g.tokens.ValidateAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	if g.revocations != nil {
		revoked, err := g.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: token was revoked", ErrUnauthenticated)
		}
	}

	return &models.Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

// Authorize resolves the identity carried by token and requires its role to equal requiredRole, ignoring case
func (g *Guard) Authorize(ctx context.Context, token string, requiredRole models.Role) (*models.Identity, error) {
	identity, err := g.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(string(identity.Role), string(requiredRole)) {
		return nil, fmt.Errorf("%w: role %q required", ErrForbidden, requiredRole)
	}

	return identity, nil
}
