package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yourusername/pulse-api/internal/pkg/errors"
	"github.com/yourusername/pulse-api/internal/pkg/logger"
	"github.com/yourusername/pulse-api/pkg/auth"
)

// respondError переводит доменную ошибку в HTTP статус и error_type
func respondError(c *gin.Context, component string, err error) {
	status, errorType := classifyError(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context(), component).WithError(err).Errorf("[%s] Internal server error", component)
		message = "Internal server error"
	}
	c.JSON(status, gin.H{"error": message, "error_type": errorType})
}

// classifyError возвращает статус и error_type для ошибки
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrSigningSecretMissing):
		return http.StatusInternalServerError, "internal_server_error"
	case errors.Is(err, apperrors.ErrUnavailable):
		return http.StatusServiceUnavailable, "dependency_unavailable"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusBadRequest, "conflict"
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}

// respondBindError отвечает 400 на ошибку разбора тела запроса
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
}
