// Package wallet holds the types shared by every layer of the wallet service:
// the structured error taxonomy, the authenticated caller, and the JSON error response
// returned by the HTTP API.
package wallet
