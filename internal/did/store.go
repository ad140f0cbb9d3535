package did

import (
	"context"
	"time"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
)

// Store persists identity records.
//
// Implementations return wallet errors: ErrCodeNotFound for unknown identifiers and
// ErrCodeAlreadyExists when CreateIdentity would overwrite an existing identifier.
type Store interface {
	CreateIdentity(ctx context.Context, rec *Record) error
	GetIdentity(ctx context.Context, identifier string) (*Record, error)

	// ListIdentitiesByOwner returns the owner's records, oldest first
	ListIdentitiesByOwner(ctx context.Context, ownerID string) ([]*Record, error)

	// ListActiveIdentities returns every record that has not been deactivated, oldest first
	ListActiveIdentities(ctx context.Context) ([]*Record, error)

	// DeactivateIdentity sets DeactivatedAt if it is not already set.
	// It reports false when the record was already deactivated.
	DeactivateIdentity(ctx context.Context, identifier string, at time.Time) (bool, error)

	// ReplaceSealedKey swaps the sealed key only if the stored blob still equals current.
	// It reports false when the blob was changed by someone else.
	ReplaceSealedKey(ctx context.Context, identifier string, current, replacement crypto.StoredBlob, at time.Time) (bool, error)

	// WithinTx runs fn against a transactional view of the store.
	// All writes made through the view are committed together, or none are if fn returns an error.
	WithinTx(ctx context.Context, fn func(Store) error) error
}
