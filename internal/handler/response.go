package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wasilisafish/proposal-builder/internal/domain"
	"github.com/wasilisafish/proposal-builder/internal/extractor"
	"github.com/wasilisafish/proposal-builder/internal/middleware"
)

// APIResponse is the envelope for endpoints other than extraction.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapExtractionError translates a pipeline error to an HTTP status. A nil
// error is a pipeline that ran to completion, whatever its status.
func MapExtractionError(err error) int {
	var rl *extractor.RateLimitError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConversion), errors.Is(err, domain.ErrMalformedExtractionResponse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrServiceConfiguration):
		return http.StatusServiceUnavailable
	case errors.As(err, &rl):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondExtraction writes the envelope with the status derived from err.
func RespondExtraction(c *gin.Context, logger *slog.Logger, result *domain.ExtractionResult, err error) {
	status := MapExtractionError(err)
	var rl *extractor.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		c.Header("Retry-After", formatSeconds(rl.RetryAfter.Seconds()))
	}
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("handler.RespondExtraction: client went away",
			"request_id", middleware.GetRequestID(c),
			"extraction_id", result.ExtractionID,
		)
	case status >= http.StatusInternalServerError:
		logger.Error("handler.RespondExtraction: extraction failed",
			"request_id", middleware.GetRequestID(c),
			"extraction_id", result.ExtractionID,
			"error", err,
		)
	}
	c.JSON(status, result)
}
