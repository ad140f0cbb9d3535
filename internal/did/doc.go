// Package did is the identity key store.
//
// Each identity is a did:web identifier with one Ed25519 signing key. The private key is only ever
// persisted sealed under the owner's PIN (see crypto.Seal); the public key is published as a JWK.
//
// The Service resolves identities for anyone, lets the owner deactivate or re-seal them, and unseals
// the private key for signing when given the right PIN. It also implements jws.KeyProvider so
// credential tokens can be verified against the stored public keys.
package did
