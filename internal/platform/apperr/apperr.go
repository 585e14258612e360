// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error taxonomy for the console.

It provides a rich error type that bridges low-level transport failures and the
messages shown to the operator.

Architecture:

  - AppError: A struct containing a machine-readable Code and an operator-safe message.
  - Taxonomy: Credential, session and transport failures each carry their own code so
    callers can branch with [HasCode] instead of string matching.
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.

Every error that leaves the session core or the API client is an [AppError].
*/
package apperr

import (
	"errors"
	"net/http"
)

// # Error Codes

const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeRefreshRejected    = "REFRESH_REJECTED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNetworkFailure     = "NETWORK_FAILURE"
	CodeServerError        = "SERVER_ERROR"
	CodeRequestFailed      = "REQUEST_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
)

// AppError is the canonical error type for the console.
//
// It carries an HTTP status code, a machine-readable code, an operator-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for logging only and is never rendered to the operator.
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "UNAUTHORIZED").
	Code string `json:"code"`
	// Message is a human-readable description safe to show to the operator.
	Message string `json:"error"`
	// HTTPStatus is the HTTP status code associated with the failure.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the operator-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause returns a copy of e carrying cause for the logs.
func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

// # Credential & Session Errors

// InvalidCredentials creates a 401 [AppError] for a rejected login form.
func InvalidCredentials(cause error) *AppError {
	return &AppError{
		Code:       CodeInvalidCredentials,
		Message:    "Invalid email or password",
		HTTPStatus: http.StatusUnauthorized,
		Cause:      cause,
	}
}

// RefreshRejected creates a 401 [AppError] for a refresh token the backend no longer accepts.
func RefreshRejected(cause error) *AppError {
	return &AppError{
		Code:       CodeRefreshRejected,
		Message:    "Session expired",
		HTTPStatus: http.StatusUnauthorized,
		Cause:      cause,
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// # Transport Errors

// NetworkFailure creates an [AppError] for a request that received no response at all.
func NetworkFailure(cause error) *AppError {
	return &AppError{
		Code:       CodeNetworkFailure,
		Message:    "Cannot reach the server",
		HTTPStatus: http.StatusBadGateway,
		Cause:      cause,
	}
}

// ServerError creates an [AppError] for a backend 5xx response.
func ServerError(status int, msg string) *AppError {
	return &AppError{
		Code:       CodeServerError,
		Message:    msg,
		HTTPStatus: status,
	}
}

// RequestFailed creates an [AppError] for a backend 4xx response other than 401.
func RequestFailed(status int, msg string) *AppError {
	return &AppError{
		Code:       CodeRequestFailed,
		Message:    msg,
		HTTPStatus: status,
	}
}

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("View") // Returns "View not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// RateLimited creates a 429 [AppError].
func RateLimited() *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    "Too many attempts. Please wait a moment.",
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected error.
// The cause is stored for logging but is never shown to the operator.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// HasCode reports whether err carries an [*AppError] with the given code.
func HasCode(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}
