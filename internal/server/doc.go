// Package server provides the HTTP server of the wallet.
//
// The server is configured through environment variables
// (see internal/config/config.go for details).
//
// Routes are grouped by the role the caller needs:
//   - public: health, version, metrics, jwks, DID resolution and token verification
//   - any authenticated caller: DID management and credential detail
//   - HOLDER: credential requests and the wallet views
//   - ISSUER: request decisions, direct issuance and revocation
//
// Handlers are in internal/server/handlers and middleware in internal/server/middleware.
package server
