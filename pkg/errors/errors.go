// Package errors defines custom error types and error handling utilities for
// the CCS Companion Chat Service. Errors carry a stable classification code,
// an HTTP status, and optional metadata for operator-facing logs; internal
// detail is never exposed to end users.
package errors

import (
	"fmt"
	"net/http"

	"github.com/turtacn/ccs/pkg/constants"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// CCSError represents a structured error with additional metadata.
type CCSError interface {
	error

	// Code returns the stable error classification code
	Code() constants.ErrorCode

	// HTTPStatus returns the HTTP status code
	HTTPStatus() int

	// Description returns a human-readable description
	Description() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause adds a cause error to the error chain
	WithCause(cause error) CCSError

	// WithMetadata adds additional context metadata
	WithMetadata(key string, value interface{}) CCSError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

// baseError is the internal implementation of CCSError.
type baseError struct {
	code        constants.ErrorCode
	httpStatus  int
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
}

// Error implements the error interface.
func (e *baseError) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.description
}

// Code returns the stable error classification code.
func (e *baseError) Code() constants.ErrorCode {
	return e.code
}

// HTTPStatus returns the HTTP status code.
func (e *baseError) HTTPStatus() int {
	return e.httpStatus
}

// Description returns the error description.
func (e *baseError) Description() string {
	return e.description
}

// Unwrap returns the underlying cause error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause error to the error chain.
func (e *baseError) WithCause(cause error) CCSError {
	e.cause = cause
	return e
}

// WithMetadata adds additional context metadata.
func (e *baseError) WithMetadata(key string, value interface{}) CCSError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Metadata returns all metadata.
func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

// ================================================================================
// Error Constructor
// ================================================================================

// NewError creates a new CCSError with the specified parameters.
func NewError(code constants.ErrorCode, httpStatus int, description string, message string) CCSError {
	return &baseError{
		code:        code,
		httpStatus:  httpStatus,
		description: description,
		message:     message,
		metadata:    make(map[string]interface{}),
	}
}

// ================================================================================
// Predefined Error Constructors
// ================================================================================

// ErrInvalidRequest creates an invalid_request error (400, no retry).
func ErrInvalidRequest(message string) CCSError {
	return NewError(
		constants.ErrCodeInvalidRequest,
		http.StatusBadRequest,
		"The request is missing a required parameter or includes an invalid parameter value.",
		message,
	)
}

// ErrMissingRequiredParameter creates a missing required parameter error.
func ErrMissingRequiredParameter(paramName string) CCSError {
	return ErrInvalidRequest(fmt.Sprintf("missing required parameter: %s", paramName)).
		WithMetadata("parameter", paramName)
}

// ErrTenantNotFound creates a tenant not found error (404, no retry).
func ErrTenantNotFound(slug string) CCSError {
	return NewError(
		constants.ErrCodeNotFound,
		http.StatusNotFound,
		"Tenant not found",
		fmt.Sprintf("tenant not found: %s", slug),
	).WithMetadata("tenant_slug", slug)
}

// ErrSessionNotFound creates a session not found error.
func ErrSessionNotFound(sessionID string) CCSError {
	return NewError(
		constants.ErrCodeNotFound,
		http.StatusNotFound,
		"Session not found",
		fmt.Sprintf("session not found: %s", sessionID),
	).WithMetadata("session_id", sessionID)
}

// ErrRateLimitExceeded creates a gate-denial error (429 with retry hint).
// retryAfterSeconds is surfaced both in metadata and the Retry-After header.
func ErrRateLimitExceeded(clientKey string, retryAfterSeconds int) CCSError {
	return NewError(
		constants.ErrCodeRateLimited,
		http.StatusTooManyRequests,
		"Rate limit exceeded. Please try again later.",
		fmt.Sprintf("rate limit exceeded for client %s", clientKey),
	).WithMetadata("client_key", clientKey).
		WithMetadata("retry_after_seconds", retryAfterSeconds)
}

// ErrUpstreamRateLimited indicates the generation backend is saturated.
// Distinguished from gate denial so callers can retry with backoff.
func ErrUpstreamRateLimited(message string) CCSError {
	return NewError(
		constants.ErrCodeUpstreamRateLimited,
		http.StatusTooManyRequests,
		"The generation backend is currently saturated. Retry with backoff.",
		message,
	)
}

// ErrUpstreamFailure indicates a terminal generation backend failure.
// The pipeline does not retry; retry policy belongs to the caller.
func ErrUpstreamFailure(message string) CCSError {
	return NewError(
		constants.ErrCodeUpstreamFailure,
		http.StatusInternalServerError,
		"The generation backend failed to produce a completion.",
		message,
	)
}

// ErrPersistenceFailure indicates a hard datastore failure: session or
// message writes whose identity the response contract requires.
func ErrPersistenceFailure(message string) CCSError {
	return NewError(
		constants.ErrCodePersistenceFailure,
		http.StatusInternalServerError,
		"A required datastore write failed.",
		message,
	)
}

// ErrServerError creates a generic internal error.
func ErrServerError(message string) CCSError {
	return NewError(
		constants.ErrCodeServerError,
		http.StatusInternalServerError,
		"The service encountered an unexpected condition.",
		message,
	)
}

// ErrDatabaseConnectionFailed creates a database connection failed error.
func ErrDatabaseConnectionFailed(reason string) CCSError {
	return ErrServerError(fmt.Sprintf("failed to connect to database: %s", reason)).
		WithMetadata("reason", reason)
}

// ErrMissingCredential indicates a construction-time configuration failure,
// e.g. the generation backend API key is absent.
func ErrMissingCredential(name string) CCSError {
	return ErrServerError(fmt.Sprintf("missing required credential: %s", name)).
		WithMetadata("credential", name)
}

// ================================================================================
// Error Validation Utilities
// ================================================================================

// AsCCSError attempts to cast an error to CCSError.
func AsCCSError(err error) (CCSError, bool) {
	ccsErr, ok := err.(CCSError)
	return ccsErr, ok
}

// IsNotFoundError checks if an error is a not found error.
func IsNotFoundError(err error) bool {
	if ccsErr, ok := AsCCSError(err); ok {
		return ccsErr.Code() == constants.ErrCodeNotFound
	}
	return false
}

// IsRateLimitError checks if an error is either kind of 429.
func IsRateLimitError(err error) bool {
	if ccsErr, ok := AsCCSError(err); ok {
		return ccsErr.HTTPStatus() == http.StatusTooManyRequests
	}
	return false
}

// IsUpstreamError checks if an error originated in the generation backend.
func IsUpstreamError(err error) bool {
	if ccsErr, ok := AsCCSError(err); ok {
		code := ccsErr.Code()
		return code == constants.ErrCodeUpstreamFailure ||
			code == constants.ErrCodeUpstreamRateLimited
	}
	return false
}

// ShouldLogError determines if an error should be logged based on severity.
// Client errors (4xx) are noise except rate limiting.
func ShouldLogError(err error) bool {
	if ccsErr, ok := AsCCSError(err); ok {
		status := ccsErr.HTTPStatus()
		return status >= 500 || status == http.StatusTooManyRequests
	}
	return true
}

// ================================================================================
// Error Response Builder
// ================================================================================

// ErrorResponse represents the JSON structure for error responses.
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	RequestID        string                 `json:"request_id,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts a CCSError to an ErrorResponse.
func ToErrorResponse(err CCSError) *ErrorResponse {
	return &ErrorResponse{
		Error:            string(err.Code()),
		ErrorDescription: err.Description(),
		Metadata:         err.Metadata(),
	}
}

// ToGenericErrorResponse converts any error to an ErrorResponse without
// leaking internal detail for non-CCS errors.
func ToGenericErrorResponse(err error) *ErrorResponse {
	if ccsErr, ok := AsCCSError(err); ok {
		return ToErrorResponse(ccsErr)
	}
	return &ErrorResponse{
		Error:            string(constants.ErrCodeServerError),
		ErrorDescription: "An unexpected error occurred",
	}
}
