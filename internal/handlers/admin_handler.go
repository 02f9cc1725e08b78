package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	authmw "github.com/movierec/backend/internal/auth/middleware"
	"go.uber.org/zap"
)

// SessionCleanupService is the interface that wraps the expired session sweep.
type SessionCleanupService interface {
	// Method CleanupExpired deactivates every active session whose token has expired and returns how many were deactivated.
	CleanupExpired(ctx context.Context) (int, error)
}

// AdminHandler handles admin-only requests
type AdminHandler struct {
	BaseHandler
	sessionCleanupService SessionCleanupService
	requireAdmin          func(http.Handler) http.Handler
}

// NewAdminHandler creates a new admin handler guarded by requireAdmin
func NewAdminHandler(sessionCleanupService SessionCleanupService, requireAdmin func(http.Handler) http.Handler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler:           BaseHandler{logger: logger},
		sessionCleanupService: sessionCleanupService,
		requireAdmin:          requireAdmin,
	}
}

// RegisterRoutes registers all admin handler routes
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/dashboard", h.Dashboard)
		r.Post("/sessions/cleanup", h.CleanupSessions)
	})
}

// Dashboard handles GET /admin/dashboard
// @Summary Admin dashboard
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := authmw.GetIdentity(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Welcome admin %s to the admin dashboard!", identity.Email),
	})
}

// CleanupSessions handles POST /admin/sessions/cleanup
// @Summary Deactivate expired sessions
// @Description Marks every active session whose access token has expired inactive
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]int
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /admin/sessions/cleanup [post]
func (h *AdminHandler) CleanupSessions(w http.ResponseWriter, r *http.Request) {
	count, err := h.sessionCleanupService.CleanupExpired(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "clean up expired sessions")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]int{"deactivated_sessions": count})
}
