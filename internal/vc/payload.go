package vc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

const (
	ContextCredentialsV1     = "https://www.w3.org/2018/credentials/v1"
	TypeVerifiableCredential = "VerifiableCredential"
	SchemaValidatorType      = "JsonSchemaValidator2018"

	// subjectIDClaim is set from the subject identifier and cannot be supplied as a claim
	subjectIDClaim = "id"
)

// PayloadInput holds everything needed to build a credential object
type PayloadInput struct {
	IssuerIdentifier  string
	SubjectIdentifier string
	CredentialType    string
	SchemaReference   string

	// Claims must be a JSON object
	Claims json.RawMessage
}

// CanonicalPayload is the canonical JSON of a credential object. It is stored alongside the token
// and is byte-identical to the "vc" claim inside it.
type CanonicalPayload []byte

// Credential is the W3C credential object
type Credential struct {
	Context           []string                   `json:"@context"`
	Type              []string                   `json:"type"`
	CredentialSchema  CredentialSchema           `json:"credentialSchema"`
	CredentialSubject map[string]json.RawMessage `json:"credentialSubject"`
}

// CredentialSchema references the schema the claims conform to
type CredentialSchema struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ParseClaims checks raw is a JSON object within the size limit that does not use the reserved "id" claim
func ParseClaims(raw json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, wallet.NewValidationError("claim data is required")
	}
	if int64(len(trimmed)) > crypto.MaxClaimDataSize {
		return nil, wallet.NewValidationError(fmt.Sprintf("claim data exceeds maximum size (%d bytes)", crypto.MaxClaimDataSize))
	}
	if trimmed[0] != '{' {
		return nil, wallet.NewValidationError("claim data must be a JSON object")
	}

	var claims map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &claims); err != nil {
		return nil, wallet.WrapValidationError(err, "claim data is not valid JSON")
	}
	if len(claims) == 0 {
		return nil, wallet.NewValidationError("claim data must contain at least one claim")
	}
	if _, reserved := claims[subjectIDClaim]; reserved {
		return nil, wallet.NewValidationError(`claim name "id" is reserved for the credential subject`)
	}
	for name := range claims {
		if strings.TrimSpace(name) == "" {
			return nil, wallet.NewValidationError("claim names must not be empty")
		}
	}
	return claims, nil
}

// BuildPayload builds the credential object and returns its canonical JSON
func BuildPayload(in PayloadInput) (CanonicalPayload, error) {
	if in.IssuerIdentifier == "" {
		return nil, wallet.NewValidationError("issuer identifier is required")
	}
	if in.SubjectIdentifier == "" {
		return nil, wallet.NewValidationError("subject identifier is required")
	}
	if in.CredentialType == "" {
		return nil, wallet.NewValidationError("credential type is required")
	}
	if in.SchemaReference == "" {
		return nil, wallet.NewValidationError("schema reference is required")
	}

	claims, err := ParseClaims(in.Claims)
	if err != nil {
		return nil, err
	}

	subjectID, err := json.Marshal(in.SubjectIdentifier)
	if err != nil {
		return nil, wallet.WrapInternalError(err, "failed to encode subject")
	}
	subject := make(map[string]json.RawMessage, len(claims)+1)
	for name, value := range claims {
		subject[name] = value
	}
	subject[subjectIDClaim] = subjectID

	credential := Credential{
		Context: []string{ContextCredentialsV1},
		Type:    []string{TypeVerifiableCredential, in.CredentialType},
		CredentialSchema: CredentialSchema{
			ID:   in.SchemaReference,
			Type: SchemaValidatorType,
		},
		CredentialSubject: subject,
	}

	data, err := json.Marshal(credential)
	if err != nil {
		return nil, wallet.WrapInternalError(err, "failed to encode credential")
	}
	canonical, err := crypto.CanonicalizeJSON(data)
	if err != nil {
		return nil, wallet.WrapValidationError(err, "failed to canonicalize credential")
	}
	return CanonicalPayload(canonical), nil
}

// Types returns the credential's type list
func (p CanonicalPayload) Types() ([]string, error) {
	var c struct {
		Type []string `json:"type"`
	}
	if err := json.Unmarshal(p, &c); err != nil {
		return nil, wallet.WrapInternalError(err, "failed to decode credential")
	}
	return c.Type, nil
}
