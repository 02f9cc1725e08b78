package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	authmw "github.com/movierec/backend/internal/auth/middleware"
	"github.com/movierec/backend/internal/auth/service"
	"github.com/movierec/backend/internal/models"
	"go.uber.org/zap"
)

// AuthService is the interface that wraps methods for authentication business logic.
type AuthService interface {
	// Method Register validates the request and creates a new user.
	//
	// Returns the new user ID. Duplicate emails, weak passwords and malformed input are reported with the services sentinel errors.
	Register(ctx context.Context, req *models.RegisterRequest) (int, error)
	// Method Login verifies credentials, issues an access token and upserts the user's session.
	//
	// Unknown email and wrong password are both reported as services.ErrInvalidCredentials.
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	// Method LogoutByToken deactivates the session holding the presented token.
	LogoutByToken(ctx context.Context, token string) error
	// Method ValidateToken decodes an access token and returns its claims.
	ValidateToken(ctx context.Context, token string) (*service.Claims, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	BaseHandler
	authService      AuthService
	loginMiddlewares []func(http.Handler) http.Handler
}

// NewAuthHandler creates a new auth handler.
// loginMiddlewares are applied to the login route only.
func NewAuthHandler(authService AuthService, logger *zap.Logger, loginMiddlewares ...func(http.Handler) http.Handler) *AuthHandler {
	return &AuthHandler{
		BaseHandler:      BaseHandler{logger: logger},
		authService:      authService,
		loginMiddlewares: loginMiddlewares,
	}
}

// RegisterRoutes registers all auth handler routes
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.With(h.loginMiddlewares...).Post("/login", h.Login)
		r.Post("/validate_token", h.ValidateToken)
		r.Post("/logout", h.Logout)
	})
}

// TokenIdentityResponse is the identity carried by a valid access token
type TokenIdentityResponse struct {
	UserID int         `json:"user_id"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
}

// Register handles POST /auth/register
// @Summary Register a new user
// @Description Create a user account. No session is created.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Registration request"
// @Success 200 {object} models.RegisterResponse
// @Failure 400 {object} map[string]string "Invalid body, duplicate email or weak password"
// @Failure 500 {object} map[string]string
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err, "register user")
		return
	}

	h.respondJSON(w, http.StatusOK, models.RegisterResponse{Message: "Registered", UserID: userID})
}

// Login handles POST /auth/login
// @Summary Login user
// @Description Authenticate with email and password. A new login replaces the user's previous session token.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login request"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Failure 429 {object} map[string]string "Too many login attempts"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err, "login user")
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// ValidateToken handles POST /auth/validate_token
// @Summary Validate access token
// @Description Decode the bearer token and return the identity it carries
// @Tags auth
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} TokenIdentityResponse
// @Failure 401 {object} map[string]string "Missing, invalid or expired token"
// @Router /auth/validate_token [post]
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	token := authmw.BearerToken(r)
	if token == "" {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	claims, err := h.authService.ValidateToken(r.Context(), token)
	if err != nil {
		h.respondServiceError(w, r, err, "validate token")
		return
	}

	h.respondJSON(w, http.StatusOK, TokenIdentityResponse{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	})
}

// Logout handles POST /auth/logout
// @Summary Logout user
// @Description Deactivate the session that holds the bearer token
// @Tags auth
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string "Missing, invalid or expired token"
// @Failure 404 {object} map[string]string "No active session for this token"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := authmw.BearerToken(r)
	if token == "" {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.authService.LogoutByToken(r.Context(), token); err != nil {
		h.respondServiceError(w, r, err, "logout user")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
