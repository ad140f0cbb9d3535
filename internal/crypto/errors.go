package crypto

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	// ErrCodeValidation is bad caller input: malformed JWK or token, empty secret, unsupported alg
	ErrCodeValidation ErrorCode = "validation"

	// ErrCodeInvalidPinOrCorruptData covers both a wrong PIN and a damaged sealed blob.
	// The two cases are never distinguished.
	ErrCodeInvalidPinOrCorruptData ErrorCode = "invalid_pin_or_corrupt_data"

	ErrCodeInvalidSignature ErrorCode = "invalid_signature"
	ErrCodeKeyManagement    ErrorCode = "key_management"
	ErrCodeInternal         ErrorCode = "internal"
)

// invalidPinMessage is the only message an unseal failure ever carries
const invalidPinMessage = "invalid PIN or corrupted key data"

// CryptoError is the error type returned by this package.
// Domain services translate the code into a wallet error (invalid PIN becomes Unauthorized).
type CryptoError struct {
	code    ErrorCode
	message string
	wrapped error
}

func (e *CryptoError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *CryptoError) Code() ErrorCode { return e.code }
func (e *CryptoError) Unwrap() error   { return e.wrapped }

// Message returns the message without the wrapped error's details
func (e *CryptoError) Message() string { return e.message }

// HasCode reports whether err (or any error it wraps) is a CryptoError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var cryptoErr *CryptoError
	return errors.As(err, &cryptoErr) && cryptoErr.code == code
}

func newError(code ErrorCode, wrapped error, msg string) error {
	return &CryptoError{code: code, message: msg, wrapped: wrapped}
}

func NewValidationError(msg string) error             { return newError(ErrCodeValidation, nil, msg) }
func WrapValidationError(err error, msg string) error { return newError(ErrCodeValidation, err, msg) }

// NewInvalidPinError is returned by Unseal for every failure.
// Nothing is wrapped: the underlying cause must not reach the caller.
func NewInvalidPinError() error {
	return newError(ErrCodeInvalidPinOrCorruptData, nil, invalidPinMessage)
}

// NewSignatureError is used when a token signature does not verify or cannot be parsed
func NewSignatureError(msg string) error             { return newError(ErrCodeInvalidSignature, nil, msg) }
func WrapSignatureError(err error, msg string) error { return newError(ErrCodeInvalidSignature, err, msg) }

// NewKeyManagementError covers key generation, JWK conversion and unknown kids
func NewKeyManagementError(msg string) error { return newError(ErrCodeKeyManagement, nil, msg) }
func WrapKeyManagementError(err error, msg string) error {
	return newError(ErrCodeKeyManagement, err, msg)
}

func NewInternalError(msg string) error             { return newError(ErrCodeInternal, nil, msg) }
func WrapInternalError(err error, msg string) error { return newError(ErrCodeInternal, err, msg) }
