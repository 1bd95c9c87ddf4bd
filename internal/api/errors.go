package api

import (
	"errors"
	"net/http"

	"cabo/internal/auth"
	"cabo/internal/database"
	"cabo/internal/forms"
	"cabo/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func writeError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}

// respondError maps domain errors to HTTP responses.
func respondError(c *gin.Context, logger *zerolog.Logger, err error) {
	var fe forms.FieldErrors
	switch {
	case errors.As(err, &fe):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fe})
	case errors.Is(err, service.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(c, http.StatusNotFound, "not found")
	case errors.Is(err, database.ErrDuplicate):
		writeError(c, http.StatusConflict, "already exists")
	case errors.Is(err, service.ErrNotAvailable):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		writeError(c, http.StatusTooManyRequests, "rate limit exceeded")
	case errors.Is(err, service.ErrDisabled):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrPayment):
		writeError(c, http.StatusBadGateway, "payment provider unavailable")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, err.Error())
	default:
		logger.Error().Err(err).Str("request_id", c.GetString("request_id")).Str("path", c.Request.URL.Path).Msg("request failed")
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
