package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/movierec/backend/internal/auth/service"
	"github.com/movierec/backend/internal/services"
	"go.uber.org/zap"
)

type BaseHandler struct {
	logger *zap.Logger
}

// respondJSON sends a JSON response
func (h *BaseHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// respondError sends an error JSON response
func (h *BaseHandler) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// respondServiceError maps a domain error to its status code.
// Unexpected errors are logged and answered with a generic 500.
func (h *BaseHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, services.ErrDuplicateEmail):
		h.respondError(w, http.StatusBadRequest, services.ErrDuplicateEmail.Error())
	case errors.Is(err, services.ErrWeakPassword):
		h.respondError(w, http.StatusBadRequest, services.ErrWeakPassword.Error())
	case errors.Is(err, services.ErrValidation):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		h.respondError(w, http.StatusUnauthorized, services.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrInvalidToken):
		h.respondError(w, http.StatusUnauthorized, service.ErrInvalidToken.Error())
	case errors.Is(err, services.ErrSessionNotFound):
		h.respondError(w, http.StatusNotFound, services.ErrSessionNotFound.Error())
	case errors.Is(err, services.ErrNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("failed to "+action, zap.Error(err), zap.String("path", r.URL.Path))
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes the request body into dst
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
