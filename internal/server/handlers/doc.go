// Package handlers provides the HTTP handlers of the wallet API
// and the general infrastructure handlers (health, version, jwks, metrics).
//
// Handlers are constructed with the services they need and return http.HandlerFunc.
// The authenticated caller is read from the request context (see middleware.Authenticate);
// role checks are applied when the routes are registered.
package handlers
