// Package errors provides unified error handling for sealbox.
// It implements structured error types with machine-readable kinds and
// HTTP status mapping; authentication failures map to the stable kind
// set consumed by clients and log pipelines.
package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// --- Authentication error constructors ---
//
// All identity failures are 401 with a deliberately generic message; the
// specific kind is for server-side logging and machine handling, and never
// echoes any received credential material.

// MissingCredential indicates no usable credential was found on the request.
func MissingCredential() *AppError {
	return New(ErrCodeMissingCredential, "Authentication required.", http.StatusUnauthorized)
}

// InvalidPlatformSignature indicates the init-data signature did not verify.
func InvalidPlatformSignature() *AppError {
	return New(ErrCodeInvalidPlatformSignature, "Authentication failed.", http.StatusUnauthorized)
}

// StalePayload indicates the init-data auth_date is outside the freshness window.
func StalePayload() *AppError {
	return New(ErrCodeStalePayload, "Authentication failed.", http.StatusUnauthorized)
}

// PayloadMismatch indicates the raw and structured credentials disagree.
func PayloadMismatch() *AppError {
	return New(ErrCodePayloadMismatch, "Authentication failed.", http.StatusUnauthorized)
}

// InvalidOrExpiredToken indicates bearer token verification failed.
func InvalidOrExpiredToken() *AppError {
	return New(ErrCodeInvalidOrExpiredToken, "Invalid or expired session. Please log in again.", http.StatusUnauthorized)
}

// AccountInactive indicates the token subject is unknown or deactivated.
func AccountInactive() *AppError {
	return New(ErrCodeAccountInactive, "Account is not active.", http.StatusUnauthorized)
}

// MissingPlatformLinkage indicates the account has no linked Telegram identity.
func MissingPlatformLinkage() *AppError {
	return New(ErrCodeMissingPlatformLinkage, "Account is not linked to Telegram.", http.StatusUnauthorized)
}

// InsufficientRole indicates the principal's role does not satisfy the route.
func InsufficientRole() *AppError {
	return New(ErrCodeInsufficientRole, "You don't have permission to perform this action.", http.StatusForbidden)
}

// --- Common error constructors ---

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Details: details,
	}
}

// Conflict creates a new AppError for a conflict with the current state of the resource.
func Conflict(reason string) *AppError {
	return &AppError{
		Code: ErrCodeConflict, Message: reason,
		HTTPStatus: http.StatusConflict,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}

// DatabaseError creates a new AppError for a database error.
func DatabaseError(cause error) *AppError {
	return &AppError{
		Code: ErrCodeDatabaseError, Message: "A database error occurred. Please try again.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}
