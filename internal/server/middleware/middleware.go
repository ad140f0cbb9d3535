package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// RequestSizeLimit rejects request bodies larger than maxBytes with 413.
//
// A declared Content-Length over the limit is refused before the handler runs. Otherwise the body is
// wrapped in a MaxBytesReader, and the JSON decoder reports the overrun when it reads past maxBytes.
// X-Max-Request-Size is set on every response.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	limit := strconv.FormatInt(maxBytes, 10)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Max-Request-Size", limit)

			if r.ContentLength > maxBytes {
				wallet.RespondWithErrorResponse(w, r, wallet.NewRequestTooLargeError(
					fmt.Sprintf("request body is %d bytes, the limit is %d bytes", r.ContentLength, maxBytes),
				))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets headers for an API that returns key material and credentials.
// Responses are never cached, except where a handler overrides Cache-Control (the JWKS).
func SecurityHeaders(environment string) func(http.Handler) http.Handler {
	hsts := environment == "prod" || environment == "staging"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Cache-Control", "no-store")
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
