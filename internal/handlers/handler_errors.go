package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a service error to its HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	var appErr *apperrors.AppError
	var syncErr *apperrors.SyncError
	switch {
	case errors.As(err, &appErr) && appErr.Code != 0:
		return appErr.Code
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrReferential), errors.Is(err, apperrors.ErrAuthentication):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrDuplicate), errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrConsistency):
		return http.StatusLocked
	case errors.As(err, &syncErr):
		if errors.Is(err, apperrors.ErrUnauthorized) {
			return http.StatusFailedDependency
		}
		if syncErr.Retryable {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// respondError writes err with the status it maps to. Client errors carry
// their message; server errors are logged and replaced by fallback.
func respondError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Error(fallback, slog.String("error", err.Error()))
		c.JSON(status, ErrorResponse{Error: fallback})
		return
	}
	logger.Warn(fallback, slog.String("error", err.Error()), slog.Int("status", status))
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

// badRequest reports a body or query that failed to bind.
func badRequest(c *gin.Context, logger *slog.Logger, err error) {
	logger.Warn("Failed to bind request", slog.String("error", err.Error()))
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format: " + err.Error()})
}
