// seal.go protects secret bytes (identity private keys) under a short numeric PIN.
//
// A fresh salt and nonce are drawn for every call to Seal. The sealing key is derived from the PIN with
// argon2id (memory-hard, see algorithm.go for the costs) and the secret is encrypted with ChaCha20-Poly1305.
//
// Every failure in Unseal is reported as ErrCodeInvalidPinOrCorruptData with the same message,
// whether the PIN was wrong or the stored data was damaged.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ciphertextTagSeparator joins the ciphertext and the authentication tag in the stored form
const ciphertextTagSeparator = ":"

// SealedBlob is the in-memory form of a sealed secret. All four parts are needed to unseal.
type SealedBlob struct {
	Ciphertext []byte
	Tag        []byte
	Salt       []byte
	Nonce      []byte
}

// StoredBlob is the persisted form of a SealedBlob.
//
// CiphertextAndTag is base64(ciphertext) + ":" + base64(tag); Salt and Nonce are base64 (standard encoding).
type StoredBlob struct {
	CiphertextAndTag string `json:"ciphertext"`
	Salt             string `json:"salt"`
	Nonce            string `json:"nonce"`
}

// Seal encrypts secret under a key derived from pin.
func Seal(secret []byte, pin string) (*SealedBlob, error) {
	if len(secret) == 0 {
		return nil, NewValidationError("secret is empty")
	}
	if pin == "" {
		return nil, NewValidationError("PIN is required")
	}

	salt := make([]byte, SealSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, WrapInternalError(err, "failed to generate salt")
	}
	nonce := make([]byte, SealNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, WrapInternalError(err, "failed to generate nonce")
	}

	key := deriveSealKey(pin, salt)
	defer ZeroBytes(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, WrapInternalError(err, "failed to create AEAD")
	}

	// Seal appends the tag to the ciphertext - split it so the two are stored independently
	sealed := aead.Seal(nil, nonce, secret, nil)
	tagStart := len(sealed) - aead.Overhead()

	return &SealedBlob{
		Ciphertext: sealed[:tagStart],
		Tag:        sealed[tagStart:],
		Salt:       salt,
		Nonce:      nonce,
	}, nil
}

// Unseal re-derives the key from pin and the stored salt and returns the plaintext.
// The caller owns the returned slice and should zero it (ZeroBytes) once done.
func Unseal(blob *SealedBlob, pin string) ([]byte, error) {
	if blob == nil || pin == "" {
		return nil, NewInvalidPinError()
	}
	if len(blob.Salt) != SealSaltSize || len(blob.Nonce) != SealNonceSize || len(blob.Tag) != chacha20poly1305.Overhead {
		return nil, NewInvalidPinError()
	}

	key := deriveSealKey(pin, blob.Salt)
	defer ZeroBytes(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, NewInvalidPinError()
	}

	sealed := make([]byte, 0, len(blob.Ciphertext)+len(blob.Tag))
	sealed = append(sealed, blob.Ciphertext...)
	sealed = append(sealed, blob.Tag...)

	plaintext, err := aead.Open(nil, blob.Nonce, sealed, nil)
	if err != nil {
		return nil, NewInvalidPinError()
	}
	return plaintext, nil
}

// Encode converts the blob to its persisted form.
func (b *SealedBlob) Encode() StoredBlob {
	enc := base64.StdEncoding
	return StoredBlob{
		CiphertextAndTag: enc.EncodeToString(b.Ciphertext) + ciphertextTagSeparator + enc.EncodeToString(b.Tag),
		Salt:             enc.EncodeToString(b.Salt),
		Nonce:            enc.EncodeToString(b.Nonce),
	}
}

// Equal reports whether two stored blobs are identical (constant time over the ciphertext).
func (s StoredBlob) Equal(other StoredBlob) bool {
	return subtle.ConstantTimeCompare([]byte(s.CiphertextAndTag), []byte(other.CiphertextAndTag)) == 1 &&
		s.Salt == other.Salt && s.Nonce == other.Nonce
}

// DecodeStoredBlob parses the persisted form.
// Malformed input is reported as ErrCodeInvalidPinOrCorruptData, the same as a failed unseal.
func DecodeStoredBlob(s StoredBlob) (*SealedBlob, error) {
	ciphertextPart, tagPart, found := strings.Cut(s.CiphertextAndTag, ciphertextTagSeparator)
	if !found || ciphertextPart == "" || tagPart == "" {
		return nil, NewInvalidPinError()
	}

	enc := base64.StdEncoding
	ciphertext, err := enc.DecodeString(ciphertextPart)
	if err != nil {
		return nil, NewInvalidPinError()
	}
	tag, err := enc.DecodeString(tagPart)
	if err != nil {
		return nil, NewInvalidPinError()
	}
	salt, err := enc.DecodeString(s.Salt)
	if err != nil {
		return nil, NewInvalidPinError()
	}
	nonce, err := enc.DecodeString(s.Nonce)
	if err != nil {
		return nil, NewInvalidPinError()
	}

	return &SealedBlob{
		Ciphertext: ciphertext,
		Tag:        tag,
		Salt:       salt,
		Nonce:      nonce,
	}, nil
}

// SealToStored seals secret and returns the persisted form.
func SealToStored(secret []byte, pin string) (StoredBlob, error) {
	blob, err := Seal(secret, pin)
	if err != nil {
		return StoredBlob{}, err
	}
	return blob.Encode(), nil
}

// UnsealStored decodes and unseals a persisted blob.
func UnsealStored(s StoredBlob, pin string) ([]byte, error) {
	blob, err := DecodeStoredBlob(s)
	if err != nil {
		return nil, err
	}
	return Unseal(blob, pin)
}

func deriveSealKey(pin string, salt []byte) []byte {
	p := CurrentSealParams()
	return argon2.IDKey([]byte(pin), salt, p.KDFTime, p.KDFMemoryKB, p.KDFThreads, SealKeySize)
}

// ZeroBytes overwrites b with zeros.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// String hides the sealed material from logs.
func (b *SealedBlob) String() string {
	return fmt.Sprintf("SealedBlob(ciphertext=%d bytes)", len(b.Ciphertext))
}
