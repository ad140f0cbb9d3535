package wallet

// errors.go defines the error codes returned by the wallet services

import (
	"errors"
	"fmt"
)

// WalletError represents a structured error from the wallet services.
type WalletError struct {
	// code is the wallet error code
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *WalletError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *WalletError) Code() ErrorCode { return e.code }
func (e *WalletError) Unwrap() error   { return e.wrapped }

// Message returns the message without the wrapped error's details
func (e *WalletError) Message() string { return e.message }

// ErrorCode is returned to API clients in the errorCode field of the error response.
type ErrorCode string

const (
	// ErrCodeValidation is used for malformed input (missing fields, bad PIN format, non-object claims).
	// Validation always happens before any cryptographic work.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeUnauthorized is used when the caller could not be authenticated or the supplied PIN
	// does not open the sealed key. A wrong PIN and a corrupt sealed key are not distinguished.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// ErrCodeForbidden is used when the caller is not the owner or issuer of the targeted resource
	ErrCodeForbidden ErrorCode = "FORBIDDEN"

	// ErrCodeNotFound is used when an id does not resolve
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeConflict is used for state machine violations:
	// request already processed, credential already revoked, identity already deactivated.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeAlreadyExists is used when a unique identifier is already taken
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// ErrCodeInternal is used when an internal server error occurs
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

	// ErrCodeMalformedRequest is used when JSON parsing of the request body fails
	ErrCodeMalformedRequest ErrorCode = "MALFORMED_REQUEST"

	// ErrCodeRateLimitExceeded is used when the rate limit is exceeded
	// - this is only used in the middleware
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// ErrCodeRequestTooLarge is used when the request body is too large
	// - this is only used in the middleware
	ErrCodeRequestTooLarge ErrorCode = "REQUEST_TOO_LARGE"
)

// HasCode reports whether err (or any error it wraps) is a WalletError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var walletErr *WalletError
	if errors.As(err, &walletErr) {
		return walletErr.code == code
	}
	return false
}

// NewValidationError creates a validation error for invalid input.
//
// The returned error will have code ErrCodeValidation.
func NewValidationError(msg string) error {
	return &WalletError{code: ErrCodeValidation, message: msg}
}

// WrapValidationError wraps an existing error as a validation error.
func WrapValidationError(err error, msg string) error {
	return &WalletError{code: ErrCodeValidation, message: msg, wrapped: err}
}

// NewUnauthorizedError creates an authentication error (bad token, wrong PIN).
//
// The returned error will have code ErrCodeUnauthorized.
func NewUnauthorizedError(msg string) error {
	return &WalletError{code: ErrCodeUnauthorized, message: msg}
}

// NewForbiddenError creates an error for callers acting on resources they do not own.
//
// The returned error will have code ErrCodeForbidden.
func NewForbiddenError(msg string) error {
	return &WalletError{code: ErrCodeForbidden, message: msg}
}

// NewNotFoundError creates a not found error.
//
// The returned error will have code ErrCodeNotFound.
func NewNotFoundError(msg string) error {
	return &WalletError{code: ErrCodeNotFound, message: msg}
}

// NewConflictError creates a state transition error (e.g. request already processed).
//
// The returned error will have code ErrCodeConflict.
func NewConflictError(msg string) error {
	return &WalletError{code: ErrCodeConflict, message: msg}
}

// NewAlreadyExistsError creates a duplicate identifier error.
//
// The returned error will have code ErrCodeAlreadyExists.
func NewAlreadyExistsError(msg string) error {
	return &WalletError{code: ErrCodeAlreadyExists, message: msg}
}

// WrapAlreadyExistsError wraps a storage unique violation.
func WrapAlreadyExistsError(err error, msg string) error {
	return &WalletError{code: ErrCodeAlreadyExists, message: msg, wrapped: err}
}

// NewInternalError creates an internal error for unexpected failures.
//
// The returned error will have code ErrCodeInternal.
func NewInternalError(msg string) error {
	return &WalletError{code: ErrCodeInternal, message: msg}
}

// WrapInternalError wraps an existing error as an internal error.
func WrapInternalError(err error, msg string) error {
	return &WalletError{code: ErrCodeInternal, message: msg, wrapped: err}
}

// NewMalformedRequestError creates an error for malformed requests.
func NewMalformedRequestError(msg string) error {
	return &WalletError{code: ErrCodeMalformedRequest, message: msg}
}

// WrapMalformedRequestError wraps an existing error as a malformed request error.
func WrapMalformedRequestError(err error, msg string) error {
	return &WalletError{code: ErrCodeMalformedRequest, message: msg, wrapped: err}
}

// NewRateLimitError creates a rate limit exceeded error.
func NewRateLimitError(msg string) error {
	return &WalletError{code: ErrCodeRateLimitExceeded, message: msg}
}

// NewRequestTooLargeError creates a request too large error.
func NewRequestTooLargeError(msg string) error {
	return &WalletError{code: ErrCodeRequestTooLarge, message: msg}
}
