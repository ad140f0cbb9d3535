package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// decodeJSON decodes the request body into v, rejecting unknown fields and trailing data
func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return wallet.NewRequestTooLargeError(fmt.Sprintf("request body exceeds maximum allowed size (%d bytes)", maxBytesErr.Limit))
		}
		if errors.Is(err, io.EOF) {
			return wallet.NewMalformedRequestError("request body is empty")
		}
		return wallet.NewMalformedRequestError(fmt.Sprintf("invalid request body: %s", err.Error()))
	}
	if decoder.More() {
		return wallet.NewMalformedRequestError("request body must contain a single JSON object")
	}
	return nil
}

// callerFrom returns the authenticated caller. Routes using it are always behind middleware.Authenticate.
func callerFrom(r *http.Request) (wallet.Caller, error) {
	caller, ok := wallet.CallerFromContext(r.Context())
	if !ok {
		return wallet.Caller{}, wallet.NewUnauthorizedError("not authenticated")
	}
	return caller, nil
}

// identifierParam reads a DID from the path.
// did:web identifiers may contain a literal "%3A" (port), so the raw value is used when it already looks like a DID.
func identifierParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	if strings.HasPrefix(raw, "did:") {
		return raw, nil
	}
	unescaped, err := url.PathUnescape(raw)
	if err != nil || !strings.HasPrefix(unescaped, "did:") {
		return "", wallet.NewValidationError(fmt.Sprintf("invalid DID %q", raw))
	}
	return unescaped, nil
}
