package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/movierec/backend/internal/auth/service"
	"github.com/movierec/backend/internal/models"
	"github.com/movierec/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "test-secret"
	testPassword = "Str0ng!Pass"
)

// mockUserRepository is an in-memory implementation of UserRepository
type mockUserRepository struct {
	users         map[string]*models.User
	nextID        int
	createErr     error
	getErr        error
	existsErr     error
	hideExistence bool
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: map[string]*models.User{}, nextID: 1}
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.users[user.Email]; ok {
		return fmt.Errorf("failed to create user: %w", repositories.ErrDuplicateEntry)
	}
	user.ID = m.nextID
	m.nextID++
	stored := *user
	m.users[user.Email] = &stored
	return nil
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.users[email], nil
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	if m.hideExistence {
		return false, nil
	}
	_, ok := m.users[email]
	return ok, nil
}

// mockUserLoginRepository is an in-memory session store keyed by user id
type mockUserLoginRepository struct {
	byUser    map[int]*models.UserLogin
	nextID    int
	upsertErr error
	getErr    error
}

func newMockUserLoginRepository() *mockUserLoginRepository {
	return &mockUserLoginRepository{byUser: map[int]*models.UserLogin{}, nextID: 1}
}

func (m *mockUserLoginRepository) GetByUserID(ctx context.Context, userID int) (*models.UserLogin, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if login, ok := m.byUser[userID]; ok {
		copied := *login
		return &copied, nil
	}
	return nil, nil
}

func (m *mockUserLoginRepository) GetByID(ctx context.Context, id int) (*models.UserLogin, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, login := range m.byUser {
		if login.ID == id {
			copied := *login
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockUserLoginRepository) Upsert(ctx context.Context, userID int, token string) (*models.UserLogin, error) {
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	login, ok := m.byUser[userID]
	if !ok {
		login = &models.UserLogin{ID: m.nextID, UserID: userID}
		m.nextID++
		m.byUser[userID] = login
	}
	login.Token = token
	login.Status = models.LoginStatusActive
	copied := *login
	return &copied, nil
}

func (m *mockUserLoginRepository) Deactivate(ctx context.Context, id int) (*models.UserLogin, error) {
	for _, login := range m.byUser {
		if login.ID == id && login.Status == models.LoginStatusActive {
			login.Status = models.LoginStatusInactive
			copied := *login
			return &copied, nil
		}
	}
	return nil, nil
}

// mockTokenDenylist is an in-memory implementation of TokenDenylist
type mockTokenDenylist struct {
	revoked   map[string]time.Time
	revokeErr error
	checkErr  error
}

func (m *mockTokenDenylist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	m.revoked[tokenID] = expiresAt
	return nil
}

func (m *mockTokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if m.checkErr != nil {
		return false, m.checkErr
	}
	_, ok := m.revoked[tokenID]
	return ok, nil
}

type authFixture struct {
	svc      *authService
	users    *mockUserRepository
	logins   *mockUserLoginRepository
	tokens   *service.TokenGenerator
	denylist *mockTokenDenylist
}

func newAuthFixture(t *testing.T, withDenylist bool) *authFixture {
	t.Helper()
	hasher, err := service.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	f := &authFixture{
		users:  newMockUserRepository(),
		logins: newMockUserLoginRepository(),
		tokens: service.NewTokenGenerator(testSecret, 30*time.Minute),
	}

	var denylist TokenDenylist
	if withDenylist {
		f.denylist = &mockTokenDenylist{revoked: map[string]time.Time{}}
		denylist = f.denylist
	}

	f.svc = NewAuthService(f.users, f.logins, f.tokens, hasher, service.StrengthPolicy(8), denylist, zap.NewNop())
	return f
}

func (f *authFixture) register(t *testing.T, email string, role string) int {
	t.Helper()
	id, err := f.svc.Register(context.Background(), &models.RegisterRequest{
		Username: "alice",
		Email:    email,
		Password: testPassword,
		Role:     role,
	})
	require.NoError(t, err)
	return id
}

func TestNewAuthService(t *testing.T) {
	f := newAuthFixture(t, false)

	assert.NotNil(t, f.svc)
	assert.Equal(t, f.users, f.svc.userRepo)
	assert.Equal(t, f.logins, f.svc.userLoginRepo)
	assert.Equal(t, f.tokens, f.svc.tokenGenerator)
	assert.Nil(t, f.svc.denylist)
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name          string
		req           models.RegisterRequest
		setup         func(t *testing.T, f *authFixture)
		expectedError error
		expectError   bool
		expectedRole  models.Role
	}{
		{
			name:         "success",
			req:          models.RegisterRequest{Username: "alice", Email: "a@x.com", Password: testPassword, Role: "user"},
			expectedRole: models.RoleUser,
		},
		{
			name:         "admin role",
			req:          models.RegisterRequest{Username: "root", Email: "root@x.com", Password: testPassword, Role: "Admin"},
			expectedRole: models.RoleAdmin,
		},
		{
			name:         "empty role defaults to user",
			req:          models.RegisterRequest{Username: "alice", Email: "a@x.com", Password: testPassword},
			expectedRole: models.RoleUser,
		},
		{
			name:          "unknown role",
			req:           models.RegisterRequest{Username: "alice", Email: "a@x.com", Password: testPassword, Role: "superuser"},
			expectedError: ErrValidation,
		},
		{
			name:          "invalid email format",
			req:           models.RegisterRequest{Username: "alice", Email: "not-an-email", Password: testPassword, Role: "user"},
			expectedError: ErrValidation,
		},
		{
			name:          "empty username",
			req:           models.RegisterRequest{Username: "   ", Email: "a@x.com", Password: testPassword, Role: "user"},
			expectedError: ErrValidation,
		},
		{
			name:          "weak password",
			req:           models.RegisterRequest{Username: "alice", Email: "a@x.com", Password: "password", Role: "user"},
			expectedError: ErrWeakPassword,
		},
		{
			name: "duplicate email",
			req:  models.RegisterRequest{Username: "alice2", Email: "A@X.com ", Password: testPassword, Role: "user"},
			setup: func(t *testing.T, f *authFixture) {
				f.register(t, "a@x.com", "user")
			},
			expectedError: ErrDuplicateEmail,
		},
		{
			name: "duplicate email detected on insert",
			req:  models.RegisterRequest{Username: "alice2", Email: "a@x.com", Password: testPassword, Role: "user"},
			setup: func(t *testing.T, f *authFixture) {
				f.register(t, "a@x.com", "user")
				f.users.hideExistence = true
			},
			expectedError: ErrDuplicateEmail,
		},
		{
			name: "repository error",
			req:  models.RegisterRequest{Username: "alice", Email: "a@x.com", Password: testPassword, Role: "user"},
			setup: func(t *testing.T, f *authFixture) {
				f.users.existsErr = errors.New("database error")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, false)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			before := len(f.users.users)

			id, err := f.svc.Register(context.Background(), &tt.req)

			if tt.expectedError != nil || tt.expectError {
				assert.Error(t, err)
				if tt.expectedError != nil {
					assert.ErrorIs(t, err, tt.expectedError)
				}
				assert.Zero(t, id)
				assert.Len(t, f.users.users, before)
				return
			}

			require.NoError(t, err)
			assert.Positive(t, id)
			user := f.users.users[normalizeEmail(tt.req.Email)]
			require.NotNil(t, user)
			assert.Equal(t, tt.expectedRole, user.Role)
			assert.NotEqual(t, tt.req.Password, user.PasswordHash)
			assert.Empty(t, f.logins.byUser, "registration must not create a session")
		})
	}
}

func TestAuthService_Register_DuplicateKeepsFirstUser(t *testing.T) {
	f := newAuthFixture(t, false)
	f.register(t, "a@x.com", "user")
	first := *f.users.users["a@x.com"]

	_, err := f.svc.Register(context.Background(), &models.RegisterRequest{Username: "mallory", Email: "a@x.com", Password: "0ther!Passw0rd", Role: "admin"})

	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.Equal(t, first, *f.users.users["a@x.com"])
}

func TestAuthService_Login(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		password      string
		setup         func(f *authFixture)
		expectedError error
		expectError   bool
	}{
		{name: "success", email: "a@x.com", password: testPassword},
		{name: "email is normalized", email: "  A@X.COM", password: testPassword},
		{name: "wrong password", email: "a@x.com", password: "Wr0ng!Pass", expectedError: ErrInvalidCredentials},
		{name: "unknown email", email: "b@x.com", password: testPassword, expectedError: ErrInvalidCredentials},
		{name: "empty password", email: "a@x.com", password: "", expectedError: ErrInvalidCredentials},
		{
			name:     "user lookup error",
			email:    "a@x.com",
			password: testPassword,
			setup: func(f *authFixture) {
				f.users.getErr = errors.New("database error")
			},
			expectError: true,
		},
		{
			name:     "session upsert error",
			email:    "a@x.com",
			password: testPassword,
			setup: func(f *authFixture) {
				f.logins.upsertErr = errors.New("database error")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, false)
			userID := f.register(t, "a@x.com", "user")
			if tt.setup != nil {
				tt.setup(f)
			}

			resp, err := f.svc.Login(context.Background(), &models.LoginRequest{Email: tt.email, Password: tt.password})

			if tt.expectedError != nil || tt.expectError {
				assert.Error(t, err)
				if tt.expectedError != nil {
					assert.ErrorIs(t, err, tt.expectedError)
				}
				assert.Nil(t, resp)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, resp.AccessToken)
			assert.Equal(t, "bearer", resp.TokenType)
			assert.Equal(t, models.RoleUser, resp.Role)

			session := f.logins.byUser[userID]
			require.NotNil(t, session)
			assert.Equal(t, session.ID, resp.UserLoginID)
			assert.Equal(t, resp.AccessToken, session.Token)
			assert.True(t, session.IsActive())
		})
	}
}

func TestAuthService_Login_CredentialErrorsAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t, false)
	f.register(t, "a@x.com", "user")

	_, wrongPassword := f.svc.Login(context.Background(), &models.LoginRequest{Email: "a@x.com", Password: "Wr0ng!Pass"})
	_, unknownEmail := f.svc.Login(context.Background(), &models.LoginRequest{Email: "nobody@x.com", Password: testPassword})

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestAuthService_Login_TwiceKeepsSingleSession(t *testing.T) {
	f := newAuthFixture(t, false)
	userID := f.register(t, "a@x.com", "user")

	first, err := f.svc.Login(context.Background(), &models.LoginRequest{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)
	second, err := f.svc.Login(context.Background(), &models.LoginRequest{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)

	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, first.UserLoginID, second.UserLoginID)
	assert.Len(t, f.logins.byUser, 1)
	assert.Equal(t, second.AccessToken, f.logins.byUser[userID].Token)
}

func TestAuthService_Logout(t *testing.T) {
	f := newAuthFixture(t, false)
	f.register(t, "a@x.com", "user")
	resp, err := f.svc.Login(context.Background(), &models.LoginRequest{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), resp.UserLoginID))

	session, err := f.logins.GetByID(context.Background(), resp.UserLoginID)
	require.NoError(t, err)
	assert.Equal(t, models.LoginStatusInactive, session.Status)

	// Second logout of the same session
	assert.ErrorIs(t, f.svc.Logout(context.Background(), resp.UserLoginID), ErrSessionNotFound)
	// Unknown session
	assert.ErrorIs(t, f.svc.Logout(context.Background(), 999), ErrSessionNotFound)

	// Without revocation the token stays valid until it expires
	claims, err := f.svc.ValidateToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
}

func TestAuthService_Logout_WithRevocation(t *testing.T) {
	t.Run("token rejected after logout", func(t *testing.T) {
		f := newAuthFixture(t, true)
		f.register(t, "a@x.com", "user")
		resp, err := f.svc.Login(context.Background(), &models.LoginRequest{Email: "a@x.com", Password: testPassword})
		require.NoError(t, err)

		require.NoError(t, f.svc.Logout(context.Background(), resp.UserLoginID))

		assert.Len(t, f.denylist.revoked, 1)
		_, err = f.svc.ValidateToken(context.Background(), resp.AccessToken)
		assert.ErrorIs(t, err, service.ErrInvalidToken)
	})

	t.Run("denylist write error", func(t *testing.T) {
		f := newAuthFixture(t, true)
		f.register(t, "a@x.com", "user")
		resp, err := f.svc.Login(context.Background(), &models.LoginRequest{Email: "a@x.com", Password: testPassword})
		require.NoError(t, err)
		f.denylist.revokeErr = errors.New("redis down")

		err = f.svc.Logout(context.Background(), resp.UserLoginID)

		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrSessionNotFound)

		// The session stays open so the logout can be retried
		session, err := f.logins.GetByID(context.Background(), resp.UserLoginID)
		require.NoError(t, err)
		assert.Equal(t, models.LoginStatusActive, session.Status)
		assert.Empty(t, f.denylist.revoked)

		f.denylist.revokeErr = nil
		require.NoError(t, f.svc.Logout(context.Background(), resp.UserLoginID))

		session, err = f.logins.GetByID(context.Background(), resp.UserLoginID)
		require.NoError(t, err)
		assert.Equal(t, models.LoginStatusInactive, session.Status)
		_, err = f.svc.ValidateToken(context.Background(), resp.AccessToken)
		assert.ErrorIs(t, err, service.ErrInvalidToken)
	})

	t.Run("denylist write error on logout by token", func(t *testing.T) {
		f := newAuthFixture(t, true)
		f.register(t, "a@x.com", "user")
		resp, err := f.svc.Login(context.Background(), &models.LoginRequest{Email: "a@x.com", Password: testPassword})
		require.NoError(t, err)
		f.denylist.revokeErr = errors.New("redis down")

		require.Error(t, f.svc.LogoutByToken(context.Background(), resp.AccessToken))

		f.denylist.revokeErr = nil
		require.NoError(t, f.svc.LogoutByToken(context.Background(), resp.AccessToken))
		_, err = f.svc.ValidateToken(context.Background(), resp.AccessToken)
		assert.ErrorIs(t, err, service.ErrInvalidToken)
	})

	t.Run("session lookup error", func(t *testing.T) {
		f := newAuthFixture(t, true)
		f.register(t, "a@x.com", "user")
		resp, err := f.svc.Login(context.Background(), &models.LoginRequest{Email: "a@x.com", Password: testPassword})
		require.NoError(t, err)
		f.logins.getErr = errors.New("db down")

		err = f.svc.Logout(context.Background(), resp.UserLoginID)

		assert.Error(t, err)
		assert.Empty(t, f.denylist.revoked)
	})

	t.Run("denylist read error", func(t *testing.T) {
		f := newAuthFixture(t, true)
		f.register(t, "a@x.com", "user")
		resp, err := f.svc.Login(context.Background(), &models.LoginRequest{Email: "a@x.com", Password: testPassword})
		require.NoError(t, err)
		f.denylist.checkErr = errors.New("redis down")

		_, err = f.svc.ValidateToken(context.Background(), resp.AccessToken)

		assert.Error(t, err)
		assert.NotErrorIs(t, err, service.ErrInvalidToken)
	})
}

func TestAuthService_LogoutByToken(t *testing.T) {
	f := newAuthFixture(t, false)
	f.register(t, "a@x.com", "user")

	first, err := f.svc.Login(context.Background(), &models.LoginRequest{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)
	second, err := f.svc.Login(context.Background(), &models.LoginRequest{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)

	// A token replaced by a newer login no longer owns the session
	assert.ErrorIs(t, f.svc.LogoutByToken(context.Background(), first.AccessToken), ErrSessionNotFound)

	require.NoError(t, f.svc.LogoutByToken(context.Background(), second.AccessToken))
	assert.ErrorIs(t, f.svc.LogoutByToken(context.Background(), second.AccessToken), ErrSessionNotFound)

	assert.ErrorIs(t, f.svc.LogoutByToken(context.Background(), "garbage"), service.ErrInvalidToken)

	// Valid token for a user who never logged in
	orphan, err := f.tokens.GenerateAccessToken(service.TokenSubject{UserID: 42, Email: "x@x.com", Role: models.RoleUser})
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.LogoutByToken(context.Background(), orphan), ErrSessionNotFound)

	f.logins.getErr = errors.New("database error")
	err = f.svc.LogoutByToken(context.Background(), orphan)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestAuthService_ValidateToken(t *testing.T) {
	f := newAuthFixture(t, false)

	valid, err := f.tokens.GenerateAccessToken(service.TokenSubject{UserID: 1, Email: "a@x.com", Role: models.RoleUser})
	require.NoError(t, err)
	expired, err := f.tokens.Issue(service.TokenSubject{UserID: 1, Email: "a@x.com", Role: models.RoleUser}, -time.Minute)
	require.NoError(t, err)
	foreign, err := service.NewTokenGenerator("other-secret", time.Hour).GenerateAccessToken(service.TokenSubject{UserID: 1, Email: "a@x.com", Role: models.RoleUser})
	require.NoError(t, err)

	claims, err := f.svc.ValidateToken(context.Background(), valid)
	require.NoError(t, err)
	assert.Equal(t, 1, claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)

	for name, token := range map[string]string{"expired": expired, "foreign": foreign, "malformed": "a.b.c", "empty": ""} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.ValidateToken(context.Background(), token)
			assert.ErrorIs(t, err, service.ErrInvalidToken)
		})
	}
}

// TestAuthService_EndToEnd walks through register, login, validate and logout
func TestAuthService_EndToEnd(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()

	userID, err := f.svc.Register(ctx, &models.RegisterRequest{Username: "alice", Email: "a@x.com", Password: "Str0ng!Pass", Role: "user"})
	require.NoError(t, err)
	assert.Positive(t, userID)

	resp, err := f.svc.Login(ctx, &models.LoginRequest{Email: "a@x.com", Password: "Str0ng!Pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, models.RoleUser, resp.Role)

	claims, err := f.svc.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, models.RoleUser, claims.Role)

	require.NoError(t, f.svc.Logout(ctx, resp.UserLoginID))
	assert.ErrorIs(t, f.svc.Logout(ctx, resp.UserLoginID), ErrSessionNotFound)
}
