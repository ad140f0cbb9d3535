// Package integration contains end-to-end tests for the wallet-server backed by PostgreSQL.
//
// These tests verify the server handles API requests correctly (expected responses,
// error handling, database persistence, etc). Each test runs against a temporary
// database with the embedded migrations applied, and the server is started in-process.
//
// The tests also exercise the Postgres stores directly where the behaviour is only
// observable at that level (compare-and-swap transitions, unique constraints, transactions).
//
// These tests assume the crypto, did and issuance packages are working correctly (tested separately
// against the in-memory store). Fix failures in the lower-level packages first.
package integration
