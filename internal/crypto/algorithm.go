// algorithm.go defines the process-wide cryptographic constants used by the wallet.
// They are set once at startup (ConfigureSealParams) and never change while the process runs:
// a sealed blob does not record the KDF cost it was produced with.
package crypto

import (
	"fmt"
	"sync"
)

// Algorithm specifies which signing algorithm is used for credential tokens
type Algorithm string

const (
	// AlgorithmEd25519: EdDSA with Ed25519 curve - the only algorithm used for identity keys
	AlgorithmEd25519 Algorithm = "EdDSA"

	// TokenType is the typ header of credential tokens
	TokenType = "JWT"
)

// sizes of the sealing primitives
const (
	SealKeySize   = 32 // 256-bit AEAD key
	SealSaltSize  = 16
	SealNonceSize = 12
)

// SealParams holds the argon2id cost parameters used to derive sealing keys from a PIN.
type SealParams struct {
	KDFTime     uint32
	KDFMemoryKB uint32
	KDFThreads  uint8
}

// DefaultSealParams are the production argon2id costs (2 passes, 64 MiB, 1 lane).
var DefaultSealParams = SealParams{
	KDFTime:     2,
	KDFMemoryKB: 64 * 1024,
	KDFThreads:  1,
}

var (
	sealParams    = DefaultSealParams
	sealParamsSet sync.Once
)

// ConfigureSealParams sets the process-wide KDF parameters.
// Only the first call has any effect - later calls return an error and leave the parameters unchanged.
func ConfigureSealParams(p SealParams) error {
	if p.KDFTime < 1 {
		return NewValidationError("KDF time must be at least 1")
	}
	if p.KDFMemoryKB < 8*uint32(max(p.KDFThreads, 1)) {
		return NewValidationError(fmt.Sprintf("KDF memory (%d KiB) is below the argon2 minimum", p.KDFMemoryKB))
	}
	if p.KDFThreads < 1 {
		return NewValidationError("KDF threads must be at least 1")
	}

	applied := false
	sealParamsSet.Do(func() {
		sealParams = p
		applied = true
	})
	if !applied {
		return NewInternalError("seal parameters have already been configured")
	}
	return nil
}

// CurrentSealParams returns the parameters in effect.
func CurrentSealParams() SealParams {
	return sealParams
}
