// this file contains functions to generate and (de)serialise identity key pairs
//
// Identity keys are always Ed25519. The private key is held as PKCS#8 DER
// (https://datatracker.ietf.org/doc/html/rfc5208) which is the form that is sealed under the holder's PIN.
// The unsealed DER and the parsed key only ever live in memory and should be zeroed (ZeroBytes) after use.

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// GenerateEd25519KeyPair generates a new ED25519 private key
func GenerateEd25519KeyPair() (ed25519.PrivateKey, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to generate key pair")
	}

	return privateKey, nil
}

// MarshalEd25519PrivateKey encodes the private key as PKCS#8 DER
func MarshalEd25519PrivateKey(privateKey ed25519.PrivateKey) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, NewKeyManagementError("invalid Ed25519 private key length")
	}

	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to marshal private key")
	}
	return der, nil
}

// ParseEd25519PrivateKey decodes a PKCS#8 DER private key and checks it is Ed25519
func ParseEd25519PrivateKey(der []byte) (ed25519.PrivateKey, error) {
	if len(der) == 0 {
		return nil, NewKeyManagementError("private key data is empty")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to parse PKCS#8 private key")
	}

	privateKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, NewKeyManagementError(fmt.Sprintf("expected Ed25519 private key, got %T", parsed))
	}
	return privateKey, nil
}

// Ed25519PublicKey returns the public half of privateKey
func Ed25519PublicKey(privateKey ed25519.PrivateKey) (ed25519.PublicKey, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, NewKeyManagementError("invalid Ed25519 private key length")
	}
	publicKey, ok := privateKey.Public().(ed25519.PublicKey)
	if !ok {
		return nil, NewInternalError("unexpected public key type")
	}
	return publicKey, nil
}

// EncodeEd25519PublicKeyPEM returns the public key as a PKIX PEM block (used by walletctl output)
func EncodeEd25519PublicKeyPEM(publicKey ed25519.PublicKey) ([]byte, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, NewKeyManagementError("invalid Ed25519 public key length")
	}

	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to marshal public key")
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
