package crypto

import (
	"crypto/ed25519"
	"fmt"

	"github.com/multiformats/go-multibase"
)

// ed25519PubMulticodec is the unsigned-varint multicodec prefix for ed25519-pub (0xed)
var ed25519PubMulticodec = []byte{0xed, 0x01}

// EncodeEd25519Multibase returns the publicKeyMultibase form of an Ed25519 public key:
// base58btc ("z" prefix) of the multicodec-prefixed key bytes.
func EncodeEd25519Multibase(publicKey ed25519.PublicKey) (string, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return "", NewKeyManagementError("invalid Ed25519 public key length")
	}

	prefixed := make([]byte, 0, len(ed25519PubMulticodec)+len(publicKey))
	prefixed = append(prefixed, ed25519PubMulticodec...)
	prefixed = append(prefixed, publicKey...)

	encoded, err := multibase.Encode(multibase.Base58BTC, prefixed)
	if err != nil {
		return "", WrapInternalError(err, "failed to multibase encode public key")
	}
	return encoded, nil
}

// DecodeEd25519Multibase reverses EncodeEd25519Multibase
func DecodeEd25519Multibase(encoded string) (ed25519.PublicKey, error) {
	encoding, data, err := multibase.Decode(encoded)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to decode multibase value")
	}
	if encoding != multibase.Base58BTC {
		return nil, NewKeyManagementError(fmt.Sprintf("unexpected multibase encoding %q", string(rune(encoding))))
	}
	if len(data) != len(ed25519PubMulticodec)+ed25519.PublicKeySize ||
		data[0] != ed25519PubMulticodec[0] || data[1] != ed25519PubMulticodec[1] {
		return nil, NewKeyManagementError("value is not a multicodec ed25519 public key")
	}
	return ed25519.PublicKey(data[len(ed25519PubMulticodec):]), nil
}
