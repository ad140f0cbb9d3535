// Package issuance implements the credential request workflow.
//
// A holder submits a request for a schema offered by an issuer. The issuer approves it (unsealing its
// identity key with a PIN and signing the credential) or rejects it. Issuers can also issue directly
// without a prior request, and revoke what they issued. Holders can hide credentials from their own
// wallet without affecting the issuer-controlled status.
//
// Decisions on a request are compare-and-swap on the PENDING state, so a request is approved at most once
// even when two approvals race.
package issuance
