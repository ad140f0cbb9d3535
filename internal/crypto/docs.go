// crypto package provides the cryptographic primitives used by the wallet.
//
// these are low level functions: PIN sealing of private keys (seal.go), Ed25519 keys and JWKs,
// and the compact token codec used for credentials (jws.go).
// See the did and vc packages for the high level operations.
package crypto
