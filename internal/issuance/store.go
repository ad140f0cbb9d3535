package issuance

import (
	"context"
	"time"
)

// Decision is the terminal state written by DecideRequest
type Decision struct {
	Status          RequestStatus
	RejectionReason string
	CredentialID    string
	At              time.Time
}

// Store persists requests and credentials.
//
// Implementations return wallet ErrCodeNotFound for unknown ids and ErrCodeAlreadyExists on
// unique collisions (including a second credential for the same request).
type Store interface {
	CreateRequest(ctx context.Context, req *Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)

	// ListRequestsByIssuer returns the issuer's requests with the given status, oldest first
	ListRequestsByIssuer(ctx context.Context, issuerID string, status RequestStatus) ([]*Request, error)

	// ListRequestsByHolder returns every request made by the holder, newest first
	ListRequestsByHolder(ctx context.Context, holderID string) ([]*Request, error)

	// DecideRequest moves a PENDING request to the decision's status.
	// It reports false when the request is no longer PENDING.
	DecideRequest(ctx context.Context, id string, d Decision) (bool, error)

	CreateCredential(ctx context.Context, cred *Credential) error
	GetCredential(ctx context.Context, id string) (*Credential, error)
	GetCredentialByDigest(ctx context.Context, digest string) (*Credential, error)

	// ListCredentialsByOwner returns the owner's credentials, newest first
	ListCredentialsByOwner(ctx context.Context, ownerID string, includeDeleted bool) ([]*Credential, error)

	// ListCredentialsByOrganization returns ACTIVE credentials not deleted by the holder, newest first
	ListCredentialsByOrganization(ctx context.Context, organizationID string) ([]*Credential, error)

	// RevokeCredential moves an ACTIVE credential to REVOKED. It reports false if it was already revoked.
	RevokeCredential(ctx context.Context, id string, at time.Time) (bool, error)

	// MarkCredentialDeleted sets the holder-deleted flag. Setting it twice keeps the first DeletedAt.
	MarkCredentialDeleted(ctx context.Context, id string, at time.Time) error

	WithinTx(ctx context.Context, fn func(Store) error) error
}
