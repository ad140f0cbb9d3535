package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bogunok/eudi-wallet/internal/issuance"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

const requestColumns = `id, holder_id, issuer_id, schema_id, organization_id, claim_data, status,
	rejection_reason, created_at, decided_at, credential_id`

type requestRow struct {
	ID              uuid.UUID  `db:"id"`
	HolderID        string     `db:"holder_id"`
	IssuerID        string     `db:"issuer_id"`
	SchemaID        string     `db:"schema_id"`
	OrganizationID  string     `db:"organization_id"`
	ClaimData       string     `db:"claim_data"`
	Status          string     `db:"status"`
	RejectionReason string     `db:"rejection_reason"`
	CreatedAt       time.Time  `db:"created_at"`
	DecidedAt       *time.Time `db:"decided_at"`
	CredentialID    *uuid.UUID `db:"credential_id"`
}

func (r *requestRow) request() *issuance.Request {
	req := &issuance.Request{
		ID:              r.ID.String(),
		HolderID:        r.HolderID,
		IssuerID:        r.IssuerID,
		SchemaID:        r.SchemaID,
		OrganizationID:  r.OrganizationID,
		ClaimData:       []byte(r.ClaimData),
		Status:          issuance.RequestStatus(r.Status),
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt.UTC(),
	}
	if r.DecidedAt != nil {
		t := r.DecidedAt.UTC()
		req.DecidedAt = &t
	}
	if r.CredentialID != nil {
		req.CredentialID = r.CredentialID.String()
	}
	return req
}

const credentialColumns = `id, type, issuer_identifier, subject_identifier, claim_payload, token, token_digest,
	issued_at, status, revoked_at, deleted_by_holder, deleted_at, owner_id, organization_id, request_id, schema_id`

type credentialRow struct {
	ID                uuid.UUID  `db:"id"`
	Type              []string   `db:"type"`
	IssuerIdentifier  string     `db:"issuer_identifier"`
	SubjectIdentifier string     `db:"subject_identifier"`
	ClaimPayload      string     `db:"claim_payload"`
	Token             string     `db:"token"`
	TokenDigest       string     `db:"token_digest"`
	IssuedAt          time.Time  `db:"issued_at"`
	Status            string     `db:"status"`
	RevokedAt         *time.Time `db:"revoked_at"`
	DeletedByHolder   bool       `db:"deleted_by_holder"`
	DeletedAt         *time.Time `db:"deleted_at"`
	OwnerID           string     `db:"owner_id"`
	OrganizationID    string     `db:"organization_id"`
	RequestID         *uuid.UUID `db:"request_id"`
	SchemaID          string     `db:"schema_id"`
}

func (r *credentialRow) credential() *issuance.Credential {
	c := &issuance.Credential{
		ID:                r.ID.String(),
		Type:              r.Type,
		IssuerIdentifier:  r.IssuerIdentifier,
		SubjectIdentifier: r.SubjectIdentifier,
		ClaimPayload:      []byte(r.ClaimPayload),
		Token:             r.Token,
		TokenDigest:       r.TokenDigest,
		IssuedAt:          r.IssuedAt.UTC(),
		Status:            issuance.CredentialStatus(r.Status),
		DeletedByHolder:   r.DeletedByHolder,
		OwnerID:           r.OwnerID,
		OrganizationID:    r.OrganizationID,
		SchemaID:          r.SchemaID,
	}
	if r.RevokedAt != nil {
		t := r.RevokedAt.UTC()
		c.RevokedAt = &t
	}
	if r.DeletedAt != nil {
		t := r.DeletedAt.UTC()
		c.DeletedAt = &t
	}
	if r.RequestID != nil {
		c.RequestID = r.RequestID.String()
	}
	return c
}

// parseID converts an API id to a UUID. Anything that is not a UUID cannot exist.
func parseID(id, kind string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, wallet.NewNotFoundError(fmt.Sprintf("%s %s not found", kind, id))
	}
	return parsed, nil
}

func optionalID(id string) (*uuid.UUID, error) {
	if id == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, wallet.WrapValidationError(err, fmt.Sprintf("invalid id %q", id))
	}
	return &parsed, nil
}

func (q *Queries) CreateRequest(ctx context.Context, req *issuance.Request) error {
	id, err := optionalID(req.ID)
	if err != nil {
		return err
	}
	credentialID, err := optionalID(req.CredentialID)
	if err != nil {
		return err
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO credential_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, req.HolderID, req.IssuerID, req.SchemaID, req.OrganizationID, string(req.ClaimData),
		string(req.Status), req.RejectionReason, req.CreatedAt, req.DecidedAt, credentialID)
	return err
}

func (q *Queries) GetRequest(ctx context.Context, id uuid.UUID) (*issuance.Request, error) {
	rows, err := q.db.Query(ctx, `SELECT `+requestColumns+` FROM credential_requests WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[requestRow])
	if err != nil {
		return nil, err
	}
	return row.request(), nil
}

func (q *Queries) listRequests(ctx context.Context, sql string, args ...any) ([]*issuance.Request, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	result, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[requestRow])
	if err != nil {
		return nil, err
	}
	requests := make([]*issuance.Request, len(result))
	for i, r := range result {
		requests[i] = r.request()
	}
	return requests, nil
}

func (q *Queries) ListRequestsByIssuer(ctx context.Context, issuerID string, status issuance.RequestStatus) ([]*issuance.Request, error) {
	return q.listRequests(ctx, `
		SELECT `+requestColumns+` FROM credential_requests
		WHERE issuer_id = $1 AND status = $2
		ORDER BY created_at, id`, issuerID, string(status))
}

func (q *Queries) ListRequestsByHolder(ctx context.Context, holderID string) ([]*issuance.Request, error) {
	return q.listRequests(ctx, `
		SELECT `+requestColumns+` FROM credential_requests
		WHERE holder_id = $1
		ORDER BY created_at DESC, id DESC`, holderID)
}

// DecideRequest returns the number of rows changed (0 when the request is no longer PENDING)
func (q *Queries) DecideRequest(ctx context.Context, id uuid.UUID, d issuance.Decision) (int64, error) {
	credentialID, err := optionalID(d.CredentialID)
	if err != nil {
		return 0, err
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE credential_requests
		SET status = $2, rejection_reason = $3, credential_id = $4, decided_at = $5
		WHERE id = $1 AND status = 'PENDING'`,
		id, string(d.Status), d.RejectionReason, credentialID, d.At)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) CreateCredential(ctx context.Context, c *issuance.Credential) error {
	id, err := optionalID(c.ID)
	if err != nil {
		return err
	}
	requestID, err := optionalID(c.RequestID)
	if err != nil {
		return err
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO credentials (`+credentialColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		id, c.Type, c.IssuerIdentifier, c.SubjectIdentifier, string(c.ClaimPayload), c.Token, c.TokenDigest,
		c.IssuedAt, string(c.Status), c.RevokedAt, c.DeletedByHolder, c.DeletedAt, c.OwnerID,
		c.OrganizationID, requestID, c.SchemaID)
	return err
}

func (q *Queries) getCredential(ctx context.Context, where string, arg any) (*issuance.Credential, error) {
	rows, err := q.db.Query(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE `+where, arg)
	if err != nil {
		return nil, err
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[credentialRow])
	if err != nil {
		return nil, err
	}
	return row.credential(), nil
}

func (q *Queries) GetCredential(ctx context.Context, id uuid.UUID) (*issuance.Credential, error) {
	return q.getCredential(ctx, "id = $1", id)
}

func (q *Queries) GetCredentialByDigest(ctx context.Context, digest string) (*issuance.Credential, error) {
	return q.getCredential(ctx, "token_digest = $1", digest)
}

func (q *Queries) listCredentials(ctx context.Context, sql string, args ...any) ([]*issuance.Credential, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	result, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[credentialRow])
	if err != nil {
		return nil, err
	}
	creds := make([]*issuance.Credential, len(result))
	for i, r := range result {
		creds[i] = r.credential()
	}
	return creds, nil
}

func (q *Queries) ListCredentialsByOwner(ctx context.Context, ownerID string, includeDeleted bool) ([]*issuance.Credential, error) {
	return q.listCredentials(ctx, `
		SELECT `+credentialColumns+` FROM credentials
		WHERE owner_id = $1 AND ($2 OR NOT deleted_by_holder)
		ORDER BY issued_at DESC, id DESC`, ownerID, includeDeleted)
}

func (q *Queries) ListCredentialsByOrganization(ctx context.Context, organizationID string) ([]*issuance.Credential, error) {
	return q.listCredentials(ctx, `
		SELECT `+credentialColumns+` FROM credentials
		WHERE organization_id = $1 AND status = 'ACTIVE' AND NOT deleted_by_holder
		ORDER BY issued_at DESC, id DESC`, organizationID)
}

// RevokeCredential returns the number of rows changed (0 when not ACTIVE)
func (q *Queries) RevokeCredential(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE credentials SET status = 'REVOKED', revoked_at = $2
		WHERE id = $1 AND status = 'ACTIVE'`, id, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) MarkCredentialDeleted(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE credentials SET deleted_by_holder = TRUE, deleted_at = $2
		WHERE id = $1 AND NOT deleted_by_holder`, id, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// IssuanceStore implements issuance.Store
type IssuanceStore struct {
	// pool is nil inside a transaction
	pool *pgxpool.Pool
	q    *Queries
}

func (s *IssuanceStore) CreateRequest(ctx context.Context, req *issuance.Request) error {
	return translateError(s.q.CreateRequest(ctx, req), "")
}

func (s *IssuanceStore) GetRequest(ctx context.Context, id string) (*issuance.Request, error) {
	parsed, err := parseID(id, "request")
	if err != nil {
		return nil, err
	}
	req, err := s.q.GetRequest(ctx, parsed)
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("request %s not found", id))
	}
	return req, nil
}

func (s *IssuanceStore) ListRequestsByIssuer(ctx context.Context, issuerID string, status issuance.RequestStatus) ([]*issuance.Request, error) {
	reqs, err := s.q.ListRequestsByIssuer(ctx, issuerID, status)
	return reqs, translateError(err, "")
}

func (s *IssuanceStore) ListRequestsByHolder(ctx context.Context, holderID string) ([]*issuance.Request, error) {
	reqs, err := s.q.ListRequestsByHolder(ctx, holderID)
	return reqs, translateError(err, "")
}

func (s *IssuanceStore) DecideRequest(ctx context.Context, id string, d issuance.Decision) (bool, error) {
	parsed, err := parseID(id, "request")
	if err != nil {
		return false, err
	}
	var decided bool
	err = inTx(ctx, s.pool, s.q, func(q *Queries) error {
		n, err := q.DecideRequest(ctx, parsed, d)
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := q.GetRequest(ctx, parsed); err != nil {
				return err
			}
		}
		decided = n == 1
		return nil
	})
	return decided, translateError(err, fmt.Sprintf("request %s not found", id))
}

func (s *IssuanceStore) CreateCredential(ctx context.Context, cred *issuance.Credential) error {
	return translateError(s.q.CreateCredential(ctx, cred), "")
}

func (s *IssuanceStore) GetCredential(ctx context.Context, id string) (*issuance.Credential, error) {
	parsed, err := parseID(id, "credential")
	if err != nil {
		return nil, err
	}
	cred, err := s.q.GetCredential(ctx, parsed)
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("credential %s not found", id))
	}
	return cred, nil
}

func (s *IssuanceStore) GetCredentialByDigest(ctx context.Context, digest string) (*issuance.Credential, error) {
	cred, err := s.q.GetCredentialByDigest(ctx, digest)
	if err != nil {
		return nil, translateError(err, "credential not found")
	}
	return cred, nil
}

func (s *IssuanceStore) ListCredentialsByOwner(ctx context.Context, ownerID string, includeDeleted bool) ([]*issuance.Credential, error) {
	creds, err := s.q.ListCredentialsByOwner(ctx, ownerID, includeDeleted)
	return creds, translateError(err, "")
}

func (s *IssuanceStore) ListCredentialsByOrganization(ctx context.Context, organizationID string) ([]*issuance.Credential, error) {
	creds, err := s.q.ListCredentialsByOrganization(ctx, organizationID)
	return creds, translateError(err, "")
}

func (s *IssuanceStore) RevokeCredential(ctx context.Context, id string, at time.Time) (bool, error) {
	parsed, err := parseID(id, "credential")
	if err != nil {
		return false, err
	}
	var revoked bool
	err = inTx(ctx, s.pool, s.q, func(q *Queries) error {
		n, err := q.RevokeCredential(ctx, parsed, at)
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := q.GetCredential(ctx, parsed); err != nil {
				return err
			}
		}
		revoked = n == 1
		return nil
	})
	return revoked, translateError(err, fmt.Sprintf("credential %s not found", id))
}

func (s *IssuanceStore) MarkCredentialDeleted(ctx context.Context, id string, at time.Time) error {
	parsed, err := parseID(id, "credential")
	if err != nil {
		return err
	}
	err = inTx(ctx, s.pool, s.q, func(q *Queries) error {
		n, err := q.MarkCredentialDeleted(ctx, parsed, at)
		if err != nil {
			return err
		}
		if n == 0 {
			_, err := q.GetCredential(ctx, parsed)
			return err
		}
		return nil
	})
	return translateError(err, fmt.Sprintf("credential %s not found", id))
}

func (s *IssuanceStore) WithinTx(ctx context.Context, fn func(issuance.Store) error) error {
	return inTx(ctx, s.pool, s.q, func(q *Queries) error {
		return fn(&IssuanceStore{q: q})
	})
}
