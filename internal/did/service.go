package did

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/logger"
	"github.com/Bogunok/eudi-wallet/internal/metrics"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// DefaultKDFMaxConcurrency is used when Config.KDFMaxConcurrency is not set
const DefaultKDFMaxConcurrency = 4

// Config holds the optional collaborators of the Service
type Config struct {
	// KDFMaxConcurrency bounds the number of PIN key derivations running at once.
	// Each derivation allocates the full argon2 memory cost.
	KDFMaxConcurrency int64

	// Remote resolves keys of externally hosted issuers (optional)
	Remote *RemoteKeys

	// Metrics is optional
	Metrics *metrics.Metrics

	// Now is the clock (defaults to time.Now)
	Now func() time.Time
}

// Service manages identity records and their sealed keys
type Service struct {
	store   Store
	kdf     *semaphore.Weighted
	remote  *RemoteKeys
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService creates a Service backed by store
func NewService(store Store, cfg Config) *Service {
	if cfg.KDFMaxConcurrency < 1 {
		cfg.KDFMaxConcurrency = DefaultKDFMaxConcurrency
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:   store,
		kdf:     semaphore.NewWeighted(cfg.KDFMaxConcurrency),
		remote:  cfg.Remote,
		metrics: cfg.Metrics,
		now:     cfg.Now,
	}
}

// CreateIdentity generates a new Ed25519 identity for ownerID at did:web:<domain>.
// The private key is sealed under pin. An existing identifier is never overwritten.
func (s *Service) CreateIdentity(ctx context.Context, ownerID, pin, domain string) (*Record, error) {
	if ownerID == "" {
		return nil, wallet.NewValidationError("owner is required")
	}
	if err := ValidatePIN(pin); err != nil {
		return nil, err
	}
	identifier, err := IdentifierForDomain(domain)
	if err != nil {
		return nil, err
	}

	// fail before the expensive key derivation when the identifier is obviously taken
	if _, err := s.store.GetIdentity(ctx, identifier); err == nil {
		return nil, wallet.NewAlreadyExistsError(fmt.Sprintf("identifier %s is already registered", identifier))
	} else if !wallet.HasCode(err, wallet.ErrCodeNotFound) {
		return nil, err
	}

	privateKey, err := crypto.GenerateEd25519KeyPair()
	if err != nil {
		return nil, wallet.WrapInternalError(err, "failed to generate identity key")
	}
	defer crypto.ZeroBytes(privateKey)

	publicKey, err := crypto.Ed25519PublicKey(privateKey)
	if err != nil {
		return nil, wallet.WrapInternalError(err, "failed to derive public key")
	}

	keyReference := KeyReferenceFor(identifier)
	publicJWK, err := crypto.MarshalPublicJWK(publicKey, keyReference)
	if err != nil {
		return nil, wallet.WrapInternalError(err, "failed to export public key")
	}

	der, err := crypto.MarshalEd25519PrivateKey(privateKey)
	if err != nil {
		return nil, wallet.WrapInternalError(err, "failed to encode private key")
	}
	defer crypto.ZeroBytes(der)

	sealed, err := s.seal(ctx, der, pin)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &Record{
		Identifier:   identifier,
		KeyReference: keyReference,
		PublicKeyJWK: publicJWK,
		Sealed:       sealed,
		OwnerID:      ownerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateIdentity(ctx, rec); err != nil {
		return nil, err
	}

	s.metrics.IdentityCreated()
	logger.ContextRequestLogger(ctx).Info("identity created",
		slog.String("did", identifier),
		slog.String("owner_id", ownerID))

	return rec, nil
}

// Resolve returns the public view of an identity. Deactivated identities still resolve.
func (s *Service) Resolve(ctx context.Context, identifier string) (*PublicDescriptor, error) {
	rec, err := s.store.GetIdentity(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return rec.Descriptor(), nil
}

// Document returns the W3C DID document and resolution metadata for an identity
func (s *Service) Document(ctx context.Context, identifier string) (*ResolutionResult, error) {
	rec, err := s.store.GetIdentity(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return BuildDocument(rec)
}

// BuildDocument renders the DID document for rec
func BuildDocument(rec *Record) (*ResolutionResult, error) {
	key, err := crypto.ParsePublicJWK(rec.PublicKeyJWK)
	if err != nil {
		return nil, wallet.WrapInternalError(err, "stored public key is invalid")
	}
	publicKey, err := crypto.Ed25519JWKToPublicKey(key)
	if err != nil {
		return nil, wallet.WrapInternalError(err, "stored public key is invalid")
	}
	multibaseKey, err := crypto.EncodeEd25519Multibase(publicKey)
	if err != nil {
		return nil, wallet.WrapInternalError(err, "failed to encode public key")
	}

	return &ResolutionResult{
		Document: Document{
			Context: []string{ContextDIDv1, ContextJWS2020v1},
			ID:      rec.Identifier,
			VerificationMethod: []VerificationMethod{
				{
					ID:                 rec.KeyReference,
					Type:               VerificationMethodJWK2020,
					Controller:         rec.Identifier,
					PublicKeyJWK:       rec.PublicKeyJWK,
					PublicKeyMultibase: multibaseKey,
				},
			},
			Authentication:  []string{rec.KeyReference},
			AssertionMethod: []string{rec.KeyReference},
		},
		Metadata: DocumentMetadata{
			Created:       rec.CreatedAt,
			Updated:       rec.UpdatedAt,
			Deactivated:   rec.Deactivated(),
			DeactivatedAt: rec.DeactivatedAt,
		},
	}, nil
}

// Deactivate permanently deactivates an identity owned by callerOwnerID
func (s *Service) Deactivate(ctx context.Context, identifier, callerOwnerID string) (*Record, error) {
	rec, err := s.store.GetIdentity(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != callerOwnerID {
		return nil, wallet.NewForbiddenError("you do not have permission to deactivate this DID")
	}
	if rec.Deactivated() {
		return nil, wallet.NewConflictError("this DID is already deactivated")
	}

	at := s.now().UTC()
	changed, err := s.store.DeactivateIdentity(ctx, identifier, at)
	if err != nil {
		return nil, err
	}
	if !changed {
		// lost a race with another deactivation
		return nil, wallet.NewConflictError("this DID is already deactivated")
	}

	rec.DeactivatedAt = &at
	rec.UpdatedAt = at

	logger.ContextRequestLogger(ctx).Info("identity deactivated", slog.String("did", identifier))
	return rec, nil
}

// UnsealPrivateKey returns the identity's private key. The caller must zero it (crypto.ZeroBytes) after use.
// A wrong PIN is reported as ErrCodeUnauthorized. Deactivation is not checked here.
func (s *Service) UnsealPrivateKey(ctx context.Context, identifier, pin string) (ed25519.PrivateKey, error) {
	rec, err := s.store.GetIdentity(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return s.UnsealRecord(ctx, rec, pin)
}

// UnsealRecord unseals the private key of an already loaded record
func (s *Service) UnsealRecord(ctx context.Context, rec *Record, pin string) (ed25519.PrivateKey, error) {
	if pin == "" {
		return nil, wallet.NewValidationError("PIN is required")
	}

	if err := s.acquireKDF(ctx); err != nil {
		return nil, err
	}
	der, err := crypto.UnsealStored(rec.Sealed, pin)
	s.releaseKDF()

	if err != nil {
		s.metrics.UnsealFailed()
		if crypto.HasCode(err, crypto.ErrCodeInvalidPinOrCorruptData) {
			return nil, wallet.NewUnauthorizedError("invalid PIN or corrupted key data")
		}
		return nil, wallet.WrapInternalError(err, "failed to unseal private key")
	}
	defer crypto.ZeroBytes(der)

	privateKey, err := crypto.ParseEd25519PrivateKey(der)
	if err != nil {
		// authenticated decryption succeeded, so this is corrupt data: report it the same way as a wrong PIN
		s.metrics.UnsealFailed()
		return nil, wallet.NewUnauthorizedError("invalid PIN or corrupted key data")
	}

	// x509 returns a slice backed by its own copy, so zeroing der does not affect the key
	return privateKey, nil
}

// RotatePin re-seals one identity's key under newPin.
// A wrong oldPin leaves the stored key untouched.
func (s *Service) RotatePin(ctx context.Context, identifier, callerOwnerID, oldPin, newPin string) error {
	if err := ValidatePIN(newPin); err != nil {
		return err
	}
	rec, err := s.store.GetIdentity(ctx, identifier)
	if err != nil {
		return err
	}
	if rec.OwnerID != callerOwnerID {
		return wallet.NewForbiddenError("you do not have permission to change the PIN of this DID")
	}

	replacement, err := s.reseal(ctx, rec, oldPin, newPin)
	if err != nil {
		s.metrics.PinRotated("failed")
		return err
	}

	changed, err := s.store.ReplaceSealedKey(ctx, identifier, rec.Sealed, replacement, s.now().UTC())
	if err != nil {
		s.metrics.PinRotated("failed")
		return err
	}
	if !changed {
		s.metrics.PinRotated("failed")
		return wallet.NewConflictError("the identity key was changed concurrently, retry the PIN change")
	}

	s.metrics.PinRotated("ok")
	logger.ContextRequestLogger(ctx).Info("identity PIN rotated", slog.String("did", identifier))
	return nil
}

// RotateOwnerPin re-seals every identity of ownerID under newPin.
//
// All records must unseal with oldPin. The new blobs are computed first and then written in a single
// transaction: either every record is re-sealed or none is. It returns the number of records rotated.
func (s *Service) RotateOwnerPin(ctx context.Context, ownerID, oldPin, newPin string) (int, error) {
	if err := ValidatePIN(newPin); err != nil {
		return 0, err
	}
	records, err := s.store.ListIdentitiesByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, wallet.NewNotFoundError("no identities found for this account")
	}

	replacements := make([]crypto.StoredBlob, len(records))
	for i, rec := range records {
		replacement, err := s.reseal(ctx, rec, oldPin, newPin)
		if err != nil {
			s.metrics.PinRotated("failed")
			return 0, err
		}
		replacements[i] = replacement
	}

	at := s.now().UTC()
	err = s.store.WithinTx(ctx, func(tx Store) error {
		for i, rec := range records {
			changed, err := tx.ReplaceSealedKey(ctx, rec.Identifier, rec.Sealed, replacements[i], at)
			if err != nil {
				return err
			}
			if !changed {
				return wallet.NewConflictError(fmt.Sprintf("identity %s was changed concurrently, retry the PIN change", rec.Identifier))
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.PinRotated("failed")
		return 0, err
	}

	s.metrics.PinRotated("ok")
	logger.ContextRequestLogger(ctx).Info("account PIN rotated",
		slog.String("owner_id", ownerID),
		slog.Int("identities", len(records)))

	return len(records), nil
}

// ListByOwner returns the owner's identities, oldest first
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*Record, error) {
	return s.store.ListIdentitiesByOwner(ctx, ownerID)
}

// PrimaryForOwner returns the oldest identity of ownerID that is not deactivated.
//
// It fails with ErrCodeNotFound when the owner has no identity and ErrCodeConflict when every
// identity has been deactivated.
func (s *Service) PrimaryForOwner(ctx context.Context, ownerID string) (*Record, error) {
	records, err := s.store.ListIdentitiesByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, wallet.NewNotFoundError("no DID has been created for this account")
	}
	for _, rec := range records {
		if !rec.Deactivated() {
			return rec, nil
		}
	}
	return nil, wallet.NewConflictError("every DID of this account has been deactivated")
}

// ActiveRecords returns every identity that has not been deactivated (used for the JWKS endpoint)
func (s *Service) ActiveRecords(ctx context.Context) ([]*Record, error) {
	return s.store.ListActiveIdentities(ctx)
}

// Get returns the full record (including the sealed key) for internal callers
func (s *Service) Get(ctx context.Context, identifier string) (*Record, error) {
	return s.store.GetIdentity(ctx, identifier)
}

func (s *Service) reseal(ctx context.Context, rec *Record, oldPin, newPin string) (crypto.StoredBlob, error) {
	privateKey, err := s.UnsealRecord(ctx, rec, oldPin)
	if err != nil {
		return crypto.StoredBlob{}, err
	}
	defer crypto.ZeroBytes(privateKey)

	der, err := crypto.MarshalEd25519PrivateKey(privateKey)
	if err != nil {
		return crypto.StoredBlob{}, wallet.WrapInternalError(err, "failed to encode private key")
	}
	defer crypto.ZeroBytes(der)

	return s.seal(ctx, der, newPin)
}

func (s *Service) seal(ctx context.Context, secret []byte, pin string) (crypto.StoredBlob, error) {
	if err := s.acquireKDF(ctx); err != nil {
		return crypto.StoredBlob{}, err
	}
	defer s.releaseKDF()

	sealed, err := crypto.SealToStored(secret, pin)
	if err != nil {
		return crypto.StoredBlob{}, wallet.WrapInternalError(err, "failed to seal private key")
	}
	return sealed, nil
}

func (s *Service) acquireKDF(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return wallet.WrapInternalError(err, "request cancelled before key derivation")
	}
	if err := s.kdf.Acquire(ctx, 1); err != nil {
		return wallet.WrapInternalError(err, "request cancelled while waiting for key derivation")
	}
	s.metrics.KDFStarted()
	return nil
}

func (s *Service) releaseKDF() {
	s.metrics.KDFFinished()
	s.kdf.Release(1)
}
