package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/authbridge/internal/bridge"
	identitydomain "github.com/smallbiznis/authbridge/internal/identity/domain"
	"github.com/smallbiznis/authbridge/internal/reconcile"
	userdomain "github.com/smallbiznis/authbridge/internal/user/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrTooManyRequests    = errors.New("too_many_requests")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if reason, ok := identitydomain.ReasonOf(err); ok {
		switch reason {
		case identitydomain.ReasonTransport:
			return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "identity provider unavailable"}
		case identitydomain.ReasonUnsupported:
			return http.StatusBadRequest, errorPayload{Type: "unsupported", Message: "not supported in this tenancy mode"}
		default:
			return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
		}
	}

	if reason, ok := reconcile.ReasonOf(err); ok && reason == reconcile.ReasonStorageUnavailable {
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "user store unavailable"}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, identitydomain.ErrMissingCredentials),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: "invalid request"}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrUserNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case errors.Is(err, bridge.ErrPasswordsUnsupported):
		return http.StatusNotImplemented, errorPayload{Type: "not_implemented", Message: err.Error()}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{Type: "too_many_requests", Message: "too many login attempts"}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "service unavailable"}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}
