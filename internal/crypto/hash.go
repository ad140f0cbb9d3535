// this file provides the SHA-256 digest used to index issued credential tokens
//
// The token digest lets a verifier look up the local status of a credential
// without storing or comparing full tokens.

package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash calculates the SHA-256 digest of data and returns it as lowercase hex.
func Hash(data []byte) (string, error) {
	if len(data) == 0 {
		return "", NewValidationError("data is empty")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
