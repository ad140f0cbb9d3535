// Package auth verifies the bearer tokens that identify API callers.
//
// Accounts are managed outside the wallet. The account service issues HS256 tokens signed with the
// shared AUTH_JWT_SECRET carrying the account id in "sub" and the account role in "role".
// Issue exists for development and tests (walletctl auth token).
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// MinSecretLength is the shortest secret accepted by Issue
const MinSecretLength = 32

// CallerClaims are the claims of a caller token
type CallerClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue mints a caller token valid for ttl
func Issue(secret []byte, caller wallet.Caller, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) < MinSecretLength {
		return "", wallet.NewValidationError(fmt.Sprintf("secret must be at least %d bytes", MinSecretLength))
	}
	if caller.ID == "" {
		return "", wallet.NewValidationError("caller id is required")
	}
	if _, err := wallet.ParseRole(string(caller.Role)); err != nil {
		return "", wallet.NewValidationError(err.Error())
	}
	if ttl <= 0 {
		return "", wallet.NewValidationError("ttl must be positive")
	}

	claims := CallerClaims{
		Role: string(caller.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", wallet.WrapInternalError(err, "failed to sign caller token")
	}
	return signed, nil
}

// Parse verifies a caller token and returns the caller it identifies.
// Every failure is reported as ErrCodeUnauthorized.
func Parse(secret []byte, token string) (wallet.Caller, error) {
	claims := &CallerClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return wallet.Caller{}, wallet.NewUnauthorizedError("token has expired")
		}
		return wallet.Caller{}, wallet.NewUnauthorizedError("invalid token")
	}

	if claims.Subject == "" {
		return wallet.Caller{}, wallet.NewUnauthorizedError("token has no subject")
	}
	role, err := wallet.ParseRole(claims.Role)
	if err != nil {
		return wallet.Caller{}, err
	}
	return wallet.Caller{ID: claims.Subject, Role: role}, nil
}
