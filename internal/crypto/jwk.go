// JWK (JSON Web Key) helpers for identity public keys
//
// Public keys are published as JWKs (RFC 7517) in DID documents, the identity record and
// the /.well-known/jwks.json endpoint. Conversion is done with lestrrat-go/jwx.

package crypto

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// Ed25519PublicKeyToJWK converts an Ed25519 public key to JWK format
func Ed25519PublicKeyToJWK(publicKey ed25519.PublicKey, keyID string) (jwk.Key, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, NewKeyManagementError("invalid Ed25519 public key length")
	}
	if keyID == "" {
		return nil, NewKeyManagementError("keyID is required")
	}

	key, err := jwk.Import(publicKey)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to create JWK from Ed25519 public key")
	}

	// Set key ID
	if err := key.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, WrapKeyManagementError(err, "failed to set key ID")
	}

	// Set algorithm
	if err := key.Set(jwk.AlgorithmKey, jwa.EdDSA()); err != nil {
		return nil, WrapKeyManagementError(err, "failed to set algorithm")
	}

	// Set key usage
	if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, WrapKeyManagementError(err, "failed to set key usage")
	}

	return key, nil
}

// MarshalPublicJWK returns the JSON form of an Ed25519 public key tagged with keyID
func MarshalPublicJWK(publicKey ed25519.PublicKey, keyID string) (json.RawMessage, error) {
	key, err := Ed25519PublicKeyToJWK(publicKey, keyID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(key)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to marshal JWK")
	}
	return data, nil
}

// ParsePublicJWK parses a stored JWK and returns it as a jwk.Key.
// Anything other than an Ed25519 public key (including private key material) is rejected.
func ParsePublicJWK(data []byte) (jwk.Key, error) {
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to parse JWK")
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, WrapKeyManagementError(err, "failed to export JWK")
	}
	if _, ok := raw.(ed25519.PublicKey); !ok {
		return nil, NewKeyManagementError(fmt.Sprintf("JWK is not an Ed25519 public key (got %T)", raw))
	}

	return key, nil
}

// Ed25519JWKToPublicKey converts an Ed25519 JWK to an Ed25519 public key
func Ed25519JWKToPublicKey(key jwk.Key) (ed25519.PublicKey, error) {
	if key == nil {
		return nil, NewKeyManagementError("jwk is nil")
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, WrapKeyManagementError(err, "failed to export Ed25519 public key")
	}

	publicKey, ok := raw.(ed25519.PublicKey)
	if !ok {
		alg, _ := key.Algorithm()
		return nil, NewKeyManagementError(fmt.Sprintf("expected Ed25519 public key but got key with algorithm %v and type %T", alg, raw))
	}

	return publicKey, nil
}

// Thumbprint returns the hex RFC 7638 SHA-256 thumbprint of an Ed25519 public key
func Thumbprint(publicKey ed25519.PublicKey) (string, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return "", NewKeyManagementError("invalid Ed25519 public key length")
	}

	key, err := jwk.Import(publicKey)
	if err != nil {
		return "", WrapKeyManagementError(err, "failed to import key")
	}

	thumbprint, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", WrapKeyManagementError(err, "failed to generate thumbprint")
	}

	return fmt.Sprintf("%x", thumbprint), nil
}

// FetchJWKSet fetches a JWK set from a URL (used by walletctl to check a remote issuer)
func FetchJWKSet(ctx context.Context, url string) (jwk.Set, error) {
	set, err := jwk.Fetch(ctx, url)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to fetch JWK set")
	}

	return set, nil
}
