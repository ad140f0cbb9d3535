package issuance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/did"
	"github.com/Bogunok/eudi-wallet/internal/logger"
	"github.com/Bogunok/eudi-wallet/internal/metrics"
	"github.com/Bogunok/eudi-wallet/internal/vc"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

const maxRejectionReasonLength = 1000

// Config holds the optional collaborators of the Service
type Config struct {
	Metrics *metrics.Metrics

	// Now is the clock (defaults to time.Now)
	Now func() time.Time
}

// Service runs the issuance workflow
type Service struct {
	store      Store
	identities *did.Service
	schemas    SchemaCatalog
	signer     *vc.Signer
	verifier   *vc.Verifier
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewService wires the workflow. identities is also used to resolve verification keys.
func NewService(store Store, identities *did.Service, schemas SchemaCatalog, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:      store,
		identities: identities,
		schemas:    schemas,
		signer:     vc.NewSigner(cfg.Now),
		verifier:   vc.NewVerifier(identities),
		metrics:    cfg.Metrics,
		now:        cfg.Now,
	}
}

// SubmitInput is a holder's credential request
type SubmitInput struct {
	IssuerID       string
	SchemaID       string
	OrganizationID string
	ClaimData      []byte
}

// SubmitRequest records a PENDING request from holder to the issuer named in the input
func (s *Service) SubmitRequest(ctx context.Context, holder wallet.Caller, in SubmitInput) (*Request, error) {
	if holder.ID == "" {
		return nil, wallet.NewValidationError("holder is required")
	}
	if in.IssuerID == "" {
		return nil, wallet.NewValidationError("issuerId is required")
	}
	if in.SchemaID == "" {
		return nil, wallet.NewValidationError("schemaId is required")
	}
	if _, err := vc.ParseClaims(in.ClaimData); err != nil {
		return nil, err
	}
	claims, err := crypto.CanonicalizeJSON(in.ClaimData)
	if err != nil {
		return nil, wallet.WrapValidationError(err, "claim data is not valid JSON")
	}

	schema, err := s.schemas.Lookup(ctx, in.SchemaID)
	if err != nil {
		return nil, err
	}
	if schema.IssuerID != in.IssuerID {
		return nil, wallet.NewValidationError(fmt.Sprintf("schema %s is not offered by issuer %s", in.SchemaID, in.IssuerID))
	}

	req := &Request{
		ID:             uuid.NewString(),
		HolderID:       holder.ID,
		IssuerID:       in.IssuerID,
		SchemaID:       in.SchemaID,
		OrganizationID: in.OrganizationID,
		ClaimData:      claims,
		Status:         RequestPending,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	s.metrics.RequestSubmitted()
	logger.ContextRequestLogger(ctx).Info("credential request submitted",
		slog.String("request_id", req.ID),
		slog.String("issuer_id", req.IssuerID),
		slog.String("schema_id", req.SchemaID))

	return req, nil
}

// ListPending returns the PENDING requests addressed to issuerID, oldest first
func (s *Service) ListPending(ctx context.Context, issuerID string) ([]*Request, error) {
	return s.store.ListRequestsByIssuer(ctx, issuerID, RequestPending)
}

// ListHolderRequests returns the holder's requests, newest first
func (s *Service) ListHolderRequests(ctx context.Context, holderID string) ([]*Request, error) {
	return s.store.ListRequestsByHolder(ctx, holderID)
}

// ApproveAndIssue approves a PENDING request and issues the credential to the holder's primary identity.
//
// The issuer key is unsealed with pin and zeroed once the token is signed. Approval and the credential
// insert are committed together; a concurrent approval of the same request gets ErrCodeConflict.
func (s *Service) ApproveAndIssue(ctx context.Context, requestID, issuerID, pin string) (*Credential, error) {
	req, err := s.pendingRequestFor(ctx, requestID, issuerID)
	if err != nil {
		return nil, err
	}

	holderRec, err := s.identities.PrimaryForOwner(ctx, req.HolderID)
	if err != nil {
		if wallet.HasCode(err, wallet.ErrCodeNotFound) || wallet.HasCode(err, wallet.ErrCodeConflict) {
			return nil, wallet.NewConflictError("the holder has no active DID, it must create one before a credential can be issued")
		}
		return nil, err
	}

	schema, err := s.schemas.Lookup(ctx, req.SchemaID)
	if err != nil {
		return nil, err
	}

	cred, err := s.issue(ctx, issueParams{
		issuerID:          issuerID,
		pin:               pin,
		subjectIdentifier: holderRec.Identifier,
		schema:            schema,
		claims:            req.ClaimData,
		ownerID:           req.HolderID,
		organizationID:    req.OrganizationID,
		requestID:         req.ID,
	})
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(tx Store) error {
		decided, err := tx.DecideRequest(ctx, req.ID, Decision{
			Status:       RequestApproved,
			CredentialID: cred.ID,
			At:           cred.IssuedAt,
		})
		if err != nil {
			return err
		}
		if !decided {
			return wallet.NewConflictError("this request has already been processed")
		}
		return tx.CreateCredential(ctx, cred)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RequestDecided("approved")
	s.metrics.CredentialIssued("request")
	logger.ContextRequestLogger(ctx).Info("credential request approved",
		slog.String("request_id", req.ID),
		slog.String("credential_id", cred.ID),
		slog.String("issuer_did", cred.IssuerIdentifier))

	return cred, nil
}

// RejectRequest moves a PENDING request to REJECTED. The request is kept for audit.
func (s *Service) RejectRequest(ctx context.Context, requestID, issuerID, reason string) (*Request, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxRejectionReasonLength {
		return nil, wallet.NewValidationError(fmt.Sprintf("reason must be at most %d characters", maxRejectionReasonLength))
	}

	req, err := s.pendingRequestFor(ctx, requestID, issuerID)
	if err != nil {
		return nil, err
	}

	at := s.now().UTC()
	decided, err := s.store.DecideRequest(ctx, req.ID, Decision{
		Status:          RequestRejected,
		RejectionReason: reason,
		At:              at,
	})
	if err != nil {
		return nil, err
	}
	if !decided {
		return nil, wallet.NewConflictError("this request has already been processed")
	}

	req.Status = RequestRejected
	req.RejectionReason = reason
	req.DecidedAt = &at

	s.metrics.RequestDecided("rejected")
	logger.ContextRequestLogger(ctx).Info("credential request rejected", slog.String("request_id", req.ID))

	return req, nil
}

// DirectIssueInput describes a credential issued without a prior request
type DirectIssueInput struct {
	SubjectIdentifier string
	SchemaID          string
	Claims            []byte
	OrganizationID    string

	// HolderID owns the credential in the wallet; defaults to the issuer
	HolderID string
	PIN      string
}

// IssueDirect signs and stores a credential for SubjectIdentifier using one of the issuer's own schemas
func (s *Service) IssueDirect(ctx context.Context, issuerID string, in DirectIssueInput) (*Credential, error) {
	if in.SubjectIdentifier == "" {
		return nil, wallet.NewValidationError("subjectDid is required")
	}
	if !did.IsWebIdentifier(in.SubjectIdentifier) {
		return nil, wallet.NewValidationError("subjectDid must be a did:web identifier")
	}
	if in.SchemaID == "" {
		return nil, wallet.NewValidationError("schemaId is required")
	}
	if _, err := vc.ParseClaims(in.Claims); err != nil {
		return nil, err
	}

	schema, err := s.schemas.Lookup(ctx, in.SchemaID)
	if err != nil {
		return nil, err
	}
	if schema.IssuerID != issuerID {
		return nil, wallet.NewForbiddenError("you can only issue credentials for your own schemas")
	}

	ownerID := in.HolderID
	if ownerID == "" {
		ownerID = issuerID
	}

	cred, err := s.issue(ctx, issueParams{
		issuerID:          issuerID,
		pin:               in.PIN,
		subjectIdentifier: in.SubjectIdentifier,
		schema:            schema,
		claims:            in.Claims,
		ownerID:           ownerID,
		organizationID:    in.OrganizationID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateCredential(ctx, cred); err != nil {
		return nil, err
	}

	s.metrics.CredentialIssued("direct")
	logger.ContextRequestLogger(ctx).Info("credential issued",
		slog.String("credential_id", cred.ID),
		slog.String("issuer_did", cred.IssuerIdentifier))

	return cred, nil
}

// Revoke marks a credential REVOKED. Only the owner of the issuing identity may revoke.
func (s *Service) Revoke(ctx context.Context, credentialID, callerIssuerID string) (*Credential, error) {
	cred, err := s.store.GetCredential(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	owns, err := s.ownsIdentity(ctx, cred.IssuerIdentifier, callerIssuerID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, wallet.NewForbiddenError("you do not have permission to revoke this credential")
	}
	if cred.Status == CredentialRevoked {
		return nil, wallet.NewConflictError("credential is already revoked")
	}

	at := s.now().UTC()
	revoked, err := s.store.RevokeCredential(ctx, cred.ID, at)
	if err != nil {
		return nil, err
	}
	if !revoked {
		return nil, wallet.NewConflictError("credential is already revoked")
	}
	cred.Status = CredentialRevoked
	cred.RevokedAt = &at

	s.metrics.CredentialRevoked()
	logger.ContextRequestLogger(ctx).Info("credential revoked", slog.String("credential_id", cred.ID))

	return cred, nil
}

// DeleteLocally hides a credential from the holder's wallet. Deleting twice is not an error.
func (s *Service) DeleteLocally(ctx context.Context, credentialID, callerHolderID string) error {
	cred, err := s.store.GetCredential(ctx, credentialID)
	if err != nil {
		return err
	}
	if cred.OwnerID != callerHolderID {
		return wallet.NewForbiddenError("you do not have permission to delete this credential")
	}
	if cred.DeletedByHolder {
		return nil
	}
	return s.store.MarkCredentialDeleted(ctx, cred.ID, s.now().UTC())
}

// GetCredential returns a credential to its owner or to the owner of the issuing identity.
// Anyone else gets ErrCodeNotFound.
func (s *Service) GetCredential(ctx context.Context, credentialID, callerID string) (*Credential, error) {
	cred, err := s.store.GetCredential(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if cred.OwnerID == callerID {
		return cred, nil
	}
	owns, err := s.ownsIdentity(ctx, cred.IssuerIdentifier, callerID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, wallet.NewNotFoundError("credential not found")
	}
	return cred, nil
}

// ListHolderCredentials returns the holder's credentials, newest first
func (s *Service) ListHolderCredentials(ctx context.Context, holderID string, includeDeleted bool) ([]*Credential, error) {
	return s.store.ListCredentialsByOwner(ctx, holderID, includeDeleted)
}

// ListOrganizationCredentials returns the caller's ACTIVE credentials issued for organizationID, newest first
func (s *Service) ListOrganizationCredentials(ctx context.Context, organizationID, callerID string) ([]*Credential, error) {
	if organizationID == "" {
		return nil, wallet.NewValidationError("organization id is required")
	}
	all, err := s.store.ListCredentialsByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	result := make([]*Credential, 0, len(all))
	for _, c := range all {
		if c.OwnerID == callerID {
			result = append(result, c)
		}
	}
	return result, nil
}

// VerifyToken checks a token's signature and reports what this wallet knows about it.
// This is a local status lookup, not a published revocation list.
func (s *Service) VerifyToken(ctx context.Context, token string) (*Verification, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, wallet.NewValidationError("token is required")
	}
	if len(token) > crypto.MaxTokenSize {
		return nil, wallet.NewValidationError("token is too large")
	}

	verified, err := s.verifier.Verify(ctx, token)
	if err != nil {
		s.metrics.TokenVerified("invalid")
		if crypto.HasCode(err, crypto.ErrCodeInvalidSignature) {
			return &Verification{Valid: false}, nil
		}
		return nil, err
	}

	result := &Verification{
		Valid:             true,
		Issuer:            verified.Issuer,
		Subject:           verified.Subject,
		KeyID:             verified.KeyReference,
		IssuedAt:          verified.IssuedAt,
		Credential:        verified.Credential,
		IssuerLocal:       verified.IssuerLocal,
		IssuerDeactivated: verified.IssuerDeactivated,
	}

	digest, err := crypto.Hash([]byte(token))
	if err != nil {
		return nil, wallet.WrapInternalError(err, "failed to hash token")
	}
	cred, err := s.store.GetCredentialByDigest(ctx, digest)
	switch {
	case err == nil:
		result.Known = true
		result.CredentialID = cred.ID
		result.Revoked = cred.Status == CredentialRevoked
	case wallet.HasCode(err, wallet.ErrCodeNotFound):
	default:
		return nil, err
	}

	if result.Revoked {
		s.metrics.TokenVerified("revoked")
	} else {
		s.metrics.TokenVerified("valid")
	}
	return result, nil
}

type issueParams struct {
	issuerID          string
	pin               string
	subjectIdentifier string
	schema            Schema
	claims            []byte
	ownerID           string
	organizationID    string
	requestID         string
}

// issue unseals the issuer key, signs the credential and returns it unsaved
func (s *Service) issue(ctx context.Context, p issueParams) (*Credential, error) {
	if p.pin == "" {
		return nil, wallet.NewValidationError("PIN is required")
	}

	issuerRec, err := s.identities.PrimaryForOwner(ctx, p.issuerID)
	if err != nil {
		if wallet.HasCode(err, wallet.ErrCodeNotFound) {
			return nil, wallet.NewNotFoundError("issuer DID not found, create one before issuing credentials")
		}
		return nil, err
	}

	payload, err := vc.BuildPayload(vc.PayloadInput{
		IssuerIdentifier:  issuerRec.Identifier,
		SubjectIdentifier: p.subjectIdentifier,
		CredentialType:    p.schema.Name,
		SchemaReference:   p.schema.Reference,
		Claims:            p.claims,
	})
	if err != nil {
		return nil, err
	}
	types, err := payload.Types()
	if err != nil {
		return nil, err
	}

	privateKey, err := s.identities.UnsealRecord(ctx, issuerRec, p.pin)
	if err != nil {
		return nil, err
	}

	// one clock read: the stored IssuedAt must equal the signed iat
	issuedAt := s.now().UTC().Truncate(time.Second)
	token, err := s.signer.SignAt(payload, issuerRec.Identifier, p.subjectIdentifier, issuerRec.KeyReference, issuedAt, privateKey)
	crypto.ZeroBytes(privateKey)
	if err != nil {
		return nil, err
	}

	digest, err := crypto.Hash([]byte(token))
	if err != nil {
		return nil, wallet.WrapInternalError(err, "failed to hash token")
	}

	return &Credential{
		ID:                uuid.NewString(),
		Type:              types,
		IssuerIdentifier:  issuerRec.Identifier,
		SubjectIdentifier: p.subjectIdentifier,
		ClaimPayload:      []byte(payload),
		Token:             token,
		TokenDigest:       digest,
		IssuedAt:          issuedAt,
		Status:            CredentialActive,
		OwnerID:           p.ownerID,
		OrganizationID:    p.organizationID,
		RequestID:         p.requestID,
		SchemaID:          p.schema.ID,
	}, nil
}

// pendingRequestFor loads a request the issuer may decide on.
// Unknown requests and requests for other issuers are both ErrCodeForbidden.
func (s *Service) pendingRequestFor(ctx context.Context, requestID, issuerID string) (*Request, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		if wallet.HasCode(err, wallet.ErrCodeNotFound) {
			return nil, wallet.NewForbiddenError("request not found or you are not the issuer")
		}
		return nil, err
	}
	if req.IssuerID != issuerID {
		return nil, wallet.NewForbiddenError("request not found or you are not the issuer")
	}
	if req.Status != RequestPending {
		return nil, wallet.NewConflictError("this request has already been processed")
	}
	return req, nil
}

func (s *Service) ownsIdentity(ctx context.Context, identifier, ownerID string) (bool, error) {
	rec, err := s.identities.Get(ctx, identifier)
	if err != nil {
		if wallet.HasCode(err, wallet.ErrCodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return rec.OwnerID == ownerID, nil
}
