package wallet

// responses.go provides helper functions for sending HTTP responses from the API handlers.

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Bogunok/eudi-wallet/internal/logger"
)

// RespondWithErrorResponse sends an ErrorResponse as a JSON payload.
//
// It logs the full error details server-side and sends a sanitized response to the client
func RespondWithErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse := MapErrorToResponse(err, r)

	reqLogger := logger.ContextRequestLogger(r.Context())
	attrs := []any{
		slog.String("error", err.Error()),
		slog.Int("status_code", errorResponse.StatusCode),
		slog.String("error_code", string(errorResponse.ErrorCode)),
		slog.String("request_id", errorResponse.RequestID),
	}
	if errorResponse.StatusCode >= http.StatusInternalServerError {
		reqLogger.Error("Request failed", attrs...)
	} else {
		reqLogger.Warn("Request failed", attrs...)
	}

	RespondWithJSONPayload(w, errorResponse.StatusCode, errorResponse)
}

// RespondWithJSONPayload sends a JSON response with the given status code
func RespondWithJSONPayload(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			// headers are already written
			slog.Error("Failed to encode JSON response",
				slog.String("error", err.Error()),
			)
		}
	}
}

// RespondWithStatusCodeOnly sends a response with only a status code (no body)
func RespondWithStatusCodeOnly(w http.ResponseWriter, statusCode int) {
	w.WriteHeader(statusCode)
}
