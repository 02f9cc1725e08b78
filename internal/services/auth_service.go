package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/movierec/backend/internal/auth/service"
	"github.com/movierec/backend/internal/models"
	"github.com/movierec/backend/internal/repositories"
	"go.uber.org/zap"
)

// UserRepository is the interface that wraps methods for User table data access
type UserRepository interface {
	// Method Create inserts a new user into the database and sets its ID.
	//
	// If the email is already taken, an error wrapping repositories.ErrDuplicateEntry is returned.
	Create(ctx context.Context, user *models.User) error
	// Method GetByEmail retrieves a user by email.
	//
	// If user with such email does not exist, "nil" is returned together with "nil" error.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Method ExistsByEmail checks if a user with such email exists.
	//
	// If some error occurs during check, the error will be returned together with "false" value.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// UserLoginRepository is the interface that wraps methods for the session store.
// A user has at most one session row.
type UserLoginRepository interface {
	// Method GetByUserID retrieves the session row of a user, or "nil" if the user never logged in.
	GetByUserID(ctx context.Context, userID int) (*models.UserLogin, error)
	// Method GetByID retrieves a session row by its ID, or "nil" if it does not exist.
	GetByID(ctx context.Context, id int) (*models.UserLogin, error)
	// Method Upsert creates the session row of a user or overwrites its token and reactivates it.
	Upsert(ctx context.Context, userID int, token string) (*models.UserLogin, error)
	// Method Deactivate marks an active session inactive.
	//
	// If there is no active session with such ID, "nil" is returned together with "nil" error.
	Deactivate(ctx context.Context, id int) (*models.UserLogin, error)
}

// TokenDenylist is the interface that wraps methods for revoking access tokens before they expire
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// authService implements AuthService
type authService struct {
	userRepo       UserRepository
	userLoginRepo  UserLoginRepository
	tokenGenerator *service.TokenGenerator
	hasher         *service.PasswordHasher
	passwordPolicy service.PasswordPolicy
	denylist       TokenDenylist
	logger         *zap.Logger
}

// NewAuthService creates a new auth service.
// denylist may be nil, in which case logout leaves issued tokens valid until they expire.
func NewAuthService(
	userRepo UserRepository,
	userLoginRepo UserLoginRepository,
	tokenGenerator *service.TokenGenerator,
	hasher *service.PasswordHasher,
	passwordPolicy service.PasswordPolicy,
	denylist TokenDenylist,
	logger *zap.Logger,
) *authService {
	return &authService{
		userRepo:       userRepo,
		userLoginRepo:  userLoginRepo,
		tokenGenerator: tokenGenerator,
		hasher:         hasher,
		passwordPolicy: passwordPolicy,
		denylist:       denylist,
		logger:         logger,
	}
}

// emailRegex validates email format
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// normalizeEmail trims and lowercases an email
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user account and returns its ID. No session is created.
func (s *authService) Register(ctx context.Context, req *models.RegisterRequest) (int, error) {
	email := normalizeEmail(req.Email)
	if !emailRegex.MatchString(email) {
		return 0, fmt.Errorf("%w: invalid email format", ErrValidation)
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		return 0, fmt.Errorf("%w: username cannot be empty", ErrValidation)
	}

	role := models.RoleUser
	if strings.TrimSpace(req.Role) != "" {
		var ok bool
		if role, ok = models.ParseRole(req.Role); !ok {
			return 0, fmt.Errorf("%w: unknown role %q", ErrValidation, req.Role)
		}
	}

	if !s.passwordPolicy(req.Password) {
		return 0, ErrWeakPassword
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrDuplicateEmail
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return 0, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration of the same email
		if errors.Is(err, repositories.ErrDuplicateEntry) {
			return 0, ErrDuplicateEmail
		}
		return 0, err
	}

	s.logger.Info("user registered", zap.Int("user_id", user.ID), zap.String("role", string(user.Role)))
	return user.ID, nil
}

// Login verifies credentials, issues an access token and makes it the user's single active session.
// Unknown email and wrong password both fail with ErrInvalidCredentials.
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.logger.Warn("failed login attempt")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokenGenerator.GenerateAccessToken(service.TokenSubject{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		Username: user.Username,
	})
	if err != nil {
		s.logger.Error("failed to generate access token", zap.Error(err))
		return nil, err
	}

	login, err := s.userLoginRepo.Upsert(ctx, user.ID, token)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.Int("user_id", user.ID), zap.Int("user_login_id", login.ID))
	return &models.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserLoginID: login.ID,
		Role:        user.Role,
	}, nil
}

// Logout deactivates the session with the given ID.
// It fails with ErrSessionNotFound when there is no active session with that ID.
// The token is revoked before the row is deactivated.
func (s *authService) Logout(ctx context.Context, sessionID int) error {
	login, err := s.userLoginRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !login.IsActive() {
		return ErrSessionNotFound
	}

	return s.endSession(ctx, login)
}

// endSession revokes the token of an active session and then deactivates its row
func (s *authService) endSession(ctx context.Context, login *models.UserLogin) error {
	if s.denylist != nil {
		if err := s.revoke(ctx, login.Token); err != nil {
			return err
		}
	}

	deactivated, err := s.userLoginRepo.Deactivate(ctx, login.ID)
	if err != nil {
		return err
	}
	if deactivated == nil {
		return ErrSessionNotFound
	}

	s.logger.Info("user logged out", zap.Int("user_id", deactivated.UserID), zap.Int("user_login_id", deactivated.ID))
	return nil
}

// revoke puts the session token on the denylist until it expires
func (s *authService) revoke(ctx context.Context, token string) error {
	claims, err := s.tokenGenerator.ValidateAccessToken(token)
	if err != nil {
		// Expired or unreadable tokens are already rejected by the codec
		return nil
	}

	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke session token: %w", err)
	}
	return nil
}

// LogoutByToken ends the session that holds the presented token.
// The token must be valid and belong to the user's currently active session.
func (s *authService) LogoutByToken(ctx context.Context, token string) error {
	claims, err := s.ValidateToken(ctx, token)
	if err != nil {
		return err
	}

	login, err := s.userLoginRepo.GetByUserID(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if !login.IsActive() || login.Token != token {
		return ErrSessionNotFound
	}

	return s.endSession(ctx, login)
}

// ValidateToken decodes an access token. Any decoding failure, and a revoked token, is ErrInvalidToken.
// The session store is not consulted.
func (s *authService) ValidateToken(ctx context.Context, token string) (*service.Claims, error) {
	claims, err := s.tokenGenerator.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, service.ErrConfiguration) {
			s.logger.Error("token validation is not configured", zap.Error(err))
		}
		return nil, err
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, fmt.Errorf("%w: token has been revoked", service.ErrInvalidToken)
		}
	}

	return claims, nil
}
