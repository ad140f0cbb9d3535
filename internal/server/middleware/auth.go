package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Bogunok/eudi-wallet/internal/auth"
	"github.com/Bogunok/eudi-wallet/internal/logger"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// Authenticate verifies the bearer token and stores the caller in the request context.
// Requests without a valid token are rejected with 401.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				wallet.RespondWithErrorResponse(w, r, wallet.NewUnauthorizedError("missing bearer token"))
				return
			}

			caller, err := auth.Parse(secret, strings.TrimSpace(token))
			if err != nil {
				wallet.RespondWithErrorResponse(w, r, err)
				return
			}

			logger.ContextWithLogAttrs(r.Context(),
				slog.String("caller_id", caller.ID),
				slog.String("caller_role", string(caller.Role)),
			)

			ctx := wallet.ContextWithCaller(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers that do not hold role with 403. Admins pass every check.
func RequireRole(role wallet.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := wallet.CallerFromContext(r.Context())
			if !ok {
				wallet.RespondWithErrorResponse(w, r, wallet.NewUnauthorizedError("not authenticated"))
				return
			}
			if !caller.Is(role) {
				wallet.RespondWithErrorResponse(w, r, wallet.NewForbiddenError("this operation requires the "+string(role)+" role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
