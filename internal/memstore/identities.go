package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/did"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

type identityStore struct {
	store *Store
	tx    *state
}

func (i *identityStore) CreateIdentity(ctx context.Context, rec *did.Record) error {
	return i.store.do(i.tx, func(st *state) error {
		if _, exists := st.identities[rec.Identifier]; exists {
			return wallet.NewAlreadyExistsError(fmt.Sprintf("identifier %s is already registered", rec.Identifier))
		}
		st.identities[rec.Identifier] = rec.Clone()
		return nil
	})
}

func (i *identityStore) GetIdentity(ctx context.Context, identifier string) (*did.Record, error) {
	var rec *did.Record
	err := i.store.do(i.tx, func(st *state) error {
		r, ok := st.identities[identifier]
		if !ok {
			return wallet.NewNotFoundError(fmt.Sprintf("DID %s not found", identifier))
		}
		rec = r.Clone()
		return nil
	})
	return rec, err
}

func (i *identityStore) ListIdentitiesByOwner(ctx context.Context, ownerID string) ([]*did.Record, error) {
	return i.list(func(r *did.Record) bool { return r.OwnerID == ownerID })
}

func (i *identityStore) ListActiveIdentities(ctx context.Context) ([]*did.Record, error) {
	return i.list(func(r *did.Record) bool { return !r.Deactivated() })
}

func (i *identityStore) DeactivateIdentity(ctx context.Context, identifier string, at time.Time) (bool, error) {
	var changed bool
	err := i.store.do(i.tx, func(st *state) error {
		r, ok := st.identities[identifier]
		if !ok {
			return wallet.NewNotFoundError(fmt.Sprintf("DID %s not found", identifier))
		}
		if r.Deactivated() {
			return nil
		}
		t := at
		r.DeactivatedAt = &t
		r.UpdatedAt = at
		changed = true
		return nil
	})
	return changed, err
}

func (i *identityStore) ReplaceSealedKey(ctx context.Context, identifier string, current, replacement crypto.StoredBlob, at time.Time) (bool, error) {
	var changed bool
	err := i.store.do(i.tx, func(st *state) error {
		r, ok := st.identities[identifier]
		if !ok {
			return wallet.NewNotFoundError(fmt.Sprintf("DID %s not found", identifier))
		}
		if !r.Sealed.Equal(current) {
			return nil
		}
		r.Sealed = replacement
		r.UpdatedAt = at
		changed = true
		return nil
	})
	return changed, err
}

func (i *identityStore) WithinTx(ctx context.Context, fn func(did.Store) error) error {
	return i.store.withinTx(ctx, i.tx, func(st *state) error {
		return fn(&identityStore{store: i.store, tx: st})
	})
}

func (i *identityStore) list(match func(*did.Record) bool) ([]*did.Record, error) {
	var result []*did.Record
	err := i.store.do(i.tx, func(st *state) error {
		for _, r := range st.identities {
			if match(r) {
				result = append(result, r.Clone())
			}
		}
		return nil
	})
	sort.Slice(result, func(a, b int) bool {
		if result[a].CreatedAt.Equal(result[b].CreatedAt) {
			return result[a].Identifier < result[b].Identifier
		}
		return result[a].CreatedAt.Before(result[b].CreatedAt)
	})
	return result, err
}
