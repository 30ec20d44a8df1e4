package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrUpstreamError  = errors.New("upstream error")
	ErrRateLimited    = errors.New("rate limited")
	ErrClientOutdated = errors.New("client outdated")
	ErrBusy           = errors.New("operation already in progress")
)

// APIError represents a structured error for API responses.
// Serialized as {"error": Message, "details": Details} by the handlers.
type APIError struct {
	Code       string `json:"-"`
	Message    string `json:"error"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
// Precondition failures (no eligible items, no rental period) use this too.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: http.StatusBadRequest,
		Err:        ErrInvalidRequest,
	}
}

// NewUnauthorizedError creates a 401 error for auth failures.
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:       "UNAUTHORIZED",
		Message:    reason,
		StatusCode: http.StatusUnauthorized,
		Err:        ErrUnauthorized,
	}
}

// NewUpstreamError creates a 502 error for backend failures.
func NewUpstreamError(service string, err error) *APIError {
	return &APIError{
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed", service),
		StatusCode: http.StatusBadGateway,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamError, err),
	}
}

// NewRemoteCallError wraps an error payload returned by a remote rental API.
// The upstream message is kept verbatim as details so callers can show the
// most specific text available.
func NewRemoteCallError(status int, message, details string) *APIError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &APIError{
		Code:       "REMOTE_ERROR",
		Message:    message,
		Details:    details,
		StatusCode: status,
		Err:        ErrUpstreamError,
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewRateLimitError creates a 429 error for rate limiting.
func NewRateLimitError(service string) *APIError {
	return &APIError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("%s rate limit exceeded, please retry later", service),
		StatusCode: http.StatusTooManyRequests,
		Err:        ErrRateLimited,
	}
}

// NewClientOutdatedError creates a 426 error for storefront builds older than
// the configured minimum version.
func NewClientOutdatedError(version, minimum string) *APIError {
	return &APIError{
		Code:       "CLIENT_OUTDATED",
		Message:    "storefront client must be upgraded",
		Details:    fmt.Sprintf("client version %s is older than %s", version, minimum),
		StatusCode: http.StatusUpgradeRequired,
		Err:        ErrClientOutdated,
	}
}

// NewBusyError creates a 409 error for re-entrant actions.
func NewBusyError(action string) *APIError {
	return &APIError{
		Code:       "BUSY",
		Message:    fmt.Sprintf("%s already in progress", action),
		StatusCode: http.StatusConflict,
		Err:        ErrBusy,
	}
}

// UserMessage returns the single user-facing string for err. Errors that
// define their own UserMessage win, then the API message plus details, then
// err.Error().
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Details != "" {
			return apiErr.Message + ": " + apiErr.Details
		}
		return apiErr.Message
	}
	return err.Error()
}
