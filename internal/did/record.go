package did

import (
	"encoding/json"
	"time"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
)

// Record is a persisted identity.
// Identifier and KeyReference are immutable; DeactivatedAt is terminal once set.
type Record struct {
	Identifier    string
	KeyReference  string
	PublicKeyJWK  json.RawMessage
	Sealed        crypto.StoredBlob
	OwnerID       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeactivatedAt *time.Time
}

// Deactivated reports whether the identity has been deactivated
func (r *Record) Deactivated() bool {
	return r.DeactivatedAt != nil
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	c := *r
	c.PublicKeyJWK = append(json.RawMessage(nil), r.PublicKeyJWK...)
	if r.DeactivatedAt != nil {
		t := *r.DeactivatedAt
		c.DeactivatedAt = &t
	}
	return &c
}

// PublicDescriptor is the anonymous view of an identity. It never includes sealed material.
type PublicDescriptor struct {
	Identifier    string          `json:"did"`
	KeyReference  string          `json:"keyId"`
	PublicKeyJWK  json.RawMessage `json:"publicKey"`
	CreatedAt     time.Time       `json:"createdAt"`
	Deactivated   bool            `json:"deactivated"`
	DeactivatedAt *time.Time      `json:"deactivatedAt,omitempty"`
}

// Descriptor returns the public view of the record
func (r *Record) Descriptor() *PublicDescriptor {
	return &PublicDescriptor{
		Identifier:    r.Identifier,
		KeyReference:  r.KeyReference,
		PublicKeyJWK:  r.PublicKeyJWK,
		CreatedAt:     r.CreatedAt,
		Deactivated:   r.Deactivated(),
		DeactivatedAt: r.DeactivatedAt,
	}
}

// W3C DID document contexts
const (
	ContextDIDv1     = "https://www.w3.org/ns/did/v1"
	ContextJWS2020v1 = "https://w3id.org/security/suites/jws-2020/v1"

	VerificationMethodJWK2020 = "JsonWebKey2020"
)

// Document is a W3C DID document with a single verification method
type Document struct {
	Context            []string             `json:"@context"`
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	Authentication     []string             `json:"authentication"`
	AssertionMethod    []string             `json:"assertionMethod"`
}

// VerificationMethod describes the identity's public key in both JWK and multibase form
type VerificationMethod struct {
	ID                 string          `json:"id"`
	Type               string          `json:"type"`
	Controller         string          `json:"controller"`
	PublicKeyJWK       json.RawMessage `json:"publicKeyJwk"`
	PublicKeyMultibase string          `json:"publicKeyMultibase,omitempty"`
}

// DocumentMetadata is returned alongside the document by Service.Document
type DocumentMetadata struct {
	Created       time.Time  `json:"created"`
	Updated       time.Time  `json:"updated"`
	Deactivated   bool       `json:"deactivated"`
	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`
}

// ResolutionResult is the DID resolution output (document plus metadata)
type ResolutionResult struct {
	Document Document         `json:"didDocument"`
	Metadata DocumentMetadata `json:"didDocumentMetadata"`
}
