// jws.go - compact signed tokens used for verifiable credentials
//
// A token is Base64URL(header).Base64URL(body).Base64URL(signature) (RFC 7515 compact serialization, no padding).
// The header and body are canonicalized (RFC 8785) before they are encoded, so the same inputs always produce the same token.
//
// Signing is done here because the header bytes must be the canonical form.
// Verification is delegated to lestrrat-go/jwx with a jws.KeyProvider that resolves the kid.
package crypto

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v3/jws"
)

// TokenHeader represents the protected header of a credential token.
// No other header fields are accepted.
type TokenHeader struct {
	Algorithm string `json:"alg"` // always "EdDSA"
	Type      string `json:"typ"` // always "JWT"
	KeyID     string `json:"kid"` // key reference of the signing identity (<did>#key-1)
}

// NewTokenHeader returns the header used for every credential token signed with keyID
func NewTokenHeader(keyID string) TokenHeader {
	return TokenHeader{
		Algorithm: string(AlgorithmEd25519),
		Type:      TokenType,
		KeyID:     keyID,
	}
}

// EncodeSegment marshals v, canonicalizes the JSON and returns it base64url encoded without padding
func EncodeSegment(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", WrapValidationError(err, "failed to marshal token segment")
	}
	canonical, err := CanonicalizeJSON(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(canonical), nil
}

// SignCompact signs body with privateKey and returns the compact token.
// The private key is only used for the duration of the call.
func SignCompact(header TokenHeader, body any, privateKey ed25519.PrivateKey) (string, error) {
	if header.KeyID == "" {
		return "", NewValidationError("keyID is required")
	}
	if header.Algorithm != string(AlgorithmEd25519) {
		return "", NewValidationError(fmt.Sprintf("unsupported algorithm %q", header.Algorithm))
	}
	if len(privateKey) != ed25519.PrivateKeySize {
		return "", NewKeyManagementError("invalid Ed25519 private key length")
	}

	encodedHeader, err := EncodeSegment(header)
	if err != nil {
		return "", err
	}
	encodedBody, err := EncodeSegment(body)
	if err != nil {
		return "", err
	}

	signingInput := encodedHeader + "." + encodedBody
	signature := ed25519.Sign(privateKey, []byte(signingInput))

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

// segmentEncoding rejects padding, the standard alphabet and non-zero trailing bits
var segmentEncoding = base64.RawURLEncoding.Strict()

// decodeSegment decodes one token segment and requires it to be the only encoding of its bytes.
// Without this, the unused low bits of a final character could be changed without changing the
// decoded bytes, giving a second token string that verifies but has a different digest.
func decodeSegment(segment, name string) ([]byte, error) {
	decoded, err := segmentEncoding.DecodeString(segment)
	if err != nil {
		return nil, WrapValidationError(err, fmt.Sprintf("error decoding the %s", name))
	}
	if segmentEncoding.EncodeToString(decoded) != segment {
		return nil, NewValidationError(fmt.Sprintf("%s is not canonical base64url", name))
	}
	return decoded, nil
}

// SplitCompact returns the three encoded segments of a compact token.
// Each segment must be canonical unpadded base64url.
func SplitCompact(token string) (header, body, signature string, err error) {
	if len(token) > MaxTokenSize {
		return "", "", "", NewValidationError(fmt.Sprintf("token exceeds maximum size (%d bytes)", MaxTokenSize))
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", NewValidationError("invalid token format")
	}
	for i, name := range []string{"header", "body", "signature"} {
		if _, err := decodeSegment(parts[i], name); err != nil {
			return "", "", "", err
		}
	}
	return parts[0], parts[1], parts[2], nil
}

// ParseHeader extracts the header from a token without verifying it.
// The function returns an error if the header contains something other than the fields in TokenHeader
// or if the algorithm is not EdDSA.
func ParseHeader(token string) (TokenHeader, error) {
	encodedHeader, _, _, err := SplitCompact(token)
	if err != nil {
		return TokenHeader{}, err
	}

	headerBytes, err := decodeSegment(encodedHeader, "header")
	if err != nil {
		return TokenHeader{}, err
	}

	var header TokenHeader

	decoder := json.NewDecoder(bytes.NewReader(headerBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&header); err != nil {
		return TokenHeader{}, WrapValidationError(err, "could not unmarshal header")
	}

	if header.Algorithm != string(AlgorithmEd25519) {
		return TokenHeader{}, NewValidationError(fmt.Sprintf("unsupported algorithm %q", header.Algorithm))
	}
	if header.Type != TokenType {
		return TokenHeader{}, NewValidationError(fmt.Sprintf("unsupported token type %q", header.Type))
	}
	if header.KeyID == "" {
		return TokenHeader{}, NewValidationError("missing required field: kid")
	}

	return header, nil
}

// DecodeBody returns the decoded (unverified) body of a token
func DecodeBody(token string) ([]byte, error) {
	_, encodedBody, _, err := SplitCompact(token)
	if err != nil {
		return nil, err
	}
	body, err := decodeSegment(encodedBody, "body")
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, NewValidationError("token body is not valid JSON")
	}
	return body, nil
}

// VerifyCompact checks the header and signature of token and returns the verified body.
//
// keyProvider resolves the kid in the header to a public key (see did.Service.FetchKeys).
// A token whose segments are not canonical base64url is rejected before the signature is checked,
// so exactly one token string verifies for a given header, body and signature.
// Every failure, including a malformed token, is reported as ErrCodeInvalidSignature.
func VerifyCompact(ctx context.Context, token string, keyProvider jws.KeyProvider) (TokenHeader, []byte, error) {
	if keyProvider == nil {
		return TokenHeader{}, nil, NewInternalError("key provider is nil")
	}

	header, err := ParseHeader(token)
	if err != nil {
		return TokenHeader{}, nil, WrapSignatureError(err, "invalid token header")
	}

	body, err := jws.Verify([]byte(token), jws.WithKeyProvider(keyProvider), jws.WithContext(ctx))
	if err != nil {
		return TokenHeader{}, nil, WrapSignatureError(err, "signature verification failed")
	}

	if !json.Valid(body) {
		return TokenHeader{}, nil, NewSignatureError("token body is not valid JSON")
	}

	return header, body, nil
}
