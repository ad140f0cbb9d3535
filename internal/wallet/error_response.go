package wallet

// error_response.go maps wallet and crypto errors to the JSON error response returned by the HTTP API.

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/logger"
)

// ErrorResponse is the body of every error returned by the API
type ErrorResponse struct {
	// The HTTP method used to make the request e.g. GET, POST, etc
	HTTPMethod string `json:"httpMethod"`

	// The URI that was requested
	RequestURI string `json:"requestUri"`

	StatusCode int `json:"statusCode"`

	// A standard short description corresponding to the HTTP status code, e.g. "Bad Request"
	StatusCodeText string `json:"statusCodeText"`

	ErrorCode ErrorCode `json:"errorCode"`

	// Message is safe to show to the user. Internal errors always get a generic message.
	Message string `json:"message"`

	// RequestID can be quoted when reporting a problem; it appears in the server logs
	RequestID string `json:"requestId,omitempty"`

	ErrorDateTime string `json:"errorDateTime"`
}

// MapErrorToResponse maps WalletError, CryptoError or generic errors to an ErrorResponse.
//
// Only the error's own message is returned to the client. Wrapped causes are logged server-side.
func MapErrorToResponse(err error, r *http.Request) *ErrorResponse {
	requestID := middleware.GetReqID(r.Context())

	var walletErr *WalletError
	if errors.As(err, &walletErr) {
		return newErrorResponse(r, requestID, statusForCode(walletErr.Code()), walletErr.Code(), walletErr.Message())
	}

	var cryptoErr *crypto.CryptoError
	if errors.As(err, &cryptoErr) {
		return errorResponseFromCrypto(cryptoErr, r, requestID)
	}

	// fallback - this is not expected - if it does happen, return an internal error response and log the unmapped error
	reqLogger := logger.ContextRequestLogger(r.Context())
	reqLogger.Error("BUG: Unmapped error type in MapErrorToResponse",
		slog.String("error_type", fmt.Sprintf("%T", err)),
		slog.String("error", err.Error()),
		slog.String("request_id", requestID),
	)
	return newErrorResponse(r, requestID, http.StatusInternalServerError, ErrCodeInternal, "")
}

// statusForCode returns the HTTP status for a wallet error code.
// State machine conflicts (already processed, already revoked) are reported as 400.
func statusForCode(code ErrorCode) int {
	switch code {
	case ErrCodeValidation, ErrCodeMalformedRequest, ErrCodeConflict:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyExists:
		return http.StatusConflict
	case ErrCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func errorResponseFromCrypto(err *crypto.CryptoError, r *http.Request, requestID string) *ErrorResponse {
	switch err.Code() {
	case crypto.ErrCodeValidation:
		return newErrorResponse(r, requestID, http.StatusBadRequest, ErrCodeValidation, err.Message())
	case crypto.ErrCodeInvalidSignature:
		return newErrorResponse(r, requestID, http.StatusBadRequest, ErrCodeValidation, "invalid signature")
	case crypto.ErrCodeInvalidPinOrCorruptData:
		return newErrorResponse(r, requestID, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid PIN or corrupted key data")
	case crypto.ErrCodeKeyManagement:
		return newErrorResponse(r, requestID, http.StatusBadRequest, ErrCodeValidation, "error retrieving public key")
	default:
		return newErrorResponse(r, requestID, http.StatusInternalServerError, ErrCodeInternal, "")
	}
}

func newErrorResponse(r *http.Request, requestID string, statusCode int, code ErrorCode, message string) *ErrorResponse {
	if statusCode >= http.StatusInternalServerError || message == "" {
		message = "An internal error occurred"
	}
	return &ErrorResponse{
		HTTPMethod:     r.Method,
		RequestURI:     r.RequestURI,
		StatusCode:     statusCode,
		StatusCodeText: http.StatusText(statusCode),
		ErrorCode:      code,
		Message:        message,
		RequestID:      requestID,
		ErrorDateTime:  time.Now().UTC().Format(time.RFC3339),
	}
}
