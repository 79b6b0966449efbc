package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/sunset-protocol/sunset-indexer/internal/api/shared/errors"
	"github.com/sunset-protocol/sunset-indexer/internal/domain"
	"github.com/sunset-protocol/sunset-indexer/internal/logger"
)

// errorResponse represents a standardized error response
type errorResponse struct {
	Error errorDetail `json:"error"`
}

// errorDetail contains error information
type errorDetail struct {
	Code    apierrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, statusCode int, code apierrors.ErrorCode, message string, details ...string) {
	response := errorResponse{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	}

	if len(details) > 0 {
		response.Error.Details = details[0]
	}

	c.JSON(statusCode, response)
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusBadRequest, apierrors.ErrCodeBadRequest, message, details...)
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	respondWithError(c, http.StatusBadRequest, apierrors.ErrCodeValidationFailed, "Validation failed", details)
}

// respondInternalError sends a 500 Internal Server Error response and logs the error
func respondInternalError(c *gin.Context, err error, message string, fields ...zap.Field) {
	logger.Error(err, fields...)
	respondWithError(c, http.StatusInternalServerError, apierrors.ErrCodeInternalError, message)
}

// respondUpstreamUnavailable sends a 503 when the chain RPC cannot be reached
func respondUpstreamUnavailable(c *gin.Context, err error) {
	logger.Warn("Upstream RPC unavailable", zap.Error(err), zap.String("path", c.Request.URL.Path))
	respondWithError(c, http.StatusServiceUnavailable, apierrors.ErrCodeUpstreamUnavailable,
		"Chain RPC endpoint unavailable")
}

// respondError maps an executor error onto the right status code. Upstream
// outages are 503 so clients can distinguish "unknown" from "unregistered".
func respondError(c *gin.Context, err error, message string, fields ...zap.Field) {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		respondWithError(c, statusForCode(apiErr.Code), apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}
	if errors.Is(err, domain.ErrUpstreamUnavailable) {
		respondUpstreamUnavailable(c, err)
		return
	}
	respondInternalError(c, err, message, fields...)
}

func statusForCode(code apierrors.ErrorCode) int {
	switch code {
	case apierrors.ErrCodeBadRequest, apierrors.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case apierrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apierrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apierrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apierrors.ErrCodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
