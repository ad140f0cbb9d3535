package issuance

import (
	"context"
	"encoding/json"
	"time"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// Request is a holder's request for a credential.
// Status moves PENDING -> APPROVED or PENDING -> REJECTED exactly once.
type Request struct {
	ID              string          `json:"id"`
	HolderID        string          `json:"holderId"`
	IssuerID        string          `json:"issuerId"`
	SchemaID        string          `json:"schemaId"`
	OrganizationID  string          `json:"organizationId,omitempty"`
	ClaimData       json.RawMessage `json:"claimData"`
	Status          RequestStatus   `json:"status"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	DecidedAt       *time.Time      `json:"decidedAt,omitempty"`
	CredentialID    string          `json:"credentialId,omitempty"`
}

// Clone returns a deep copy
func (r *Request) Clone() *Request {
	c := *r
	c.ClaimData = append(json.RawMessage(nil), r.ClaimData...)
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}

// CredentialStatus is controlled by the issuer only
type CredentialStatus string

const (
	CredentialActive  CredentialStatus = "ACTIVE"
	CredentialRevoked CredentialStatus = "REVOKED"

	// CredentialDeleted is only reported by DisplayStatus; it is never stored as a status
	CredentialDeleted CredentialStatus = "DELETED"
)

// Credential is an issued credential.
//
// Status (issuer controlled) and DeletedByHolder (holder controlled) are independent: a holder deleting
// a credential from their wallet does not make it look unrevoked, and a revocation is never undone.
type Credential struct {
	ID                string           `json:"id"`
	Type              []string         `json:"type"` // e.g. ["VerifiableCredential", "LegalEntity"]
	IssuerIdentifier  string           `json:"issuerDid"`
	SubjectIdentifier string           `json:"subjectDid"`
	ClaimPayload      json.RawMessage  `json:"claims"`
	Token             string           `json:"jwt"`
	TokenDigest       string           `json:"-"`
	IssuedAt          time.Time        `json:"issuedAt"`
	Status            CredentialStatus `json:"status"`
	RevokedAt         *time.Time       `json:"revokedAt,omitempty"`
	DeletedByHolder   bool             `json:"deletedByHolder"`
	DeletedAt         *time.Time       `json:"deletedAt,omitempty"`
	OwnerID           string           `json:"ownerId"`
	OrganizationID    string           `json:"organizationId,omitempty"`
	RequestID         string           `json:"requestId,omitempty"`
	SchemaID          string           `json:"schemaId"`
}

// DisplayStatus folds the holder flag into the single status used by the wallet screens:
// DELETED, then REVOKED, then ACTIVE. Status itself still reports the revocation.
func (c *Credential) DisplayStatus() CredentialStatus {
	if c.DeletedByHolder {
		return CredentialDeleted
	}
	return c.Status
}

// Clone returns a deep copy
func (c *Credential) Clone() *Credential {
	cp := *c
	cp.Type = append([]string(nil), c.Type...)
	cp.ClaimPayload = append(json.RawMessage(nil), c.ClaimPayload...)
	if c.RevokedAt != nil {
		t := *c.RevokedAt
		cp.RevokedAt = &t
	}
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}

// Schema is a credential type offered by an issuer
type Schema struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Reference string `json:"reference" yaml:"reference"`
	IssuerID  string `json:"issuerId" yaml:"issuerId"`
}

// SchemaCatalog looks up schemas. Unknown ids are reported as wallet ErrCodeNotFound.
type SchemaCatalog interface {
	Lookup(ctx context.Context, schemaID string) (Schema, error)
}

// Verification is the result of VerifyToken
type Verification struct {
	Valid             bool            `json:"valid"`
	Issuer            string          `json:"issuer"`
	Subject           string          `json:"subject"`
	KeyID             string          `json:"keyId"`
	IssuedAt          time.Time       `json:"issuedAt"`
	Credential        json.RawMessage `json:"credential"`
	IssuerLocal       bool            `json:"issuerLocal"`
	IssuerDeactivated bool            `json:"issuerDeactivated"`

	// Known is true when this wallet issued the token; Revoked and CredentialID are only meaningful then
	Known        bool   `json:"known"`
	Revoked      bool   `json:"revoked"`
	CredentialID string `json:"credentialId,omitempty"`
}
