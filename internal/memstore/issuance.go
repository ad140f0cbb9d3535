package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Bogunok/eudi-wallet/internal/issuance"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

type issuanceStore struct {
	store *Store
	tx    *state
}

func (i *issuanceStore) CreateRequest(ctx context.Context, req *issuance.Request) error {
	return i.store.do(i.tx, func(st *state) error {
		if _, exists := st.requests[req.ID]; exists {
			return wallet.NewAlreadyExistsError(fmt.Sprintf("request %s already exists", req.ID))
		}
		st.requests[req.ID] = req.Clone()
		return nil
	})
}

func (i *issuanceStore) GetRequest(ctx context.Context, id string) (*issuance.Request, error) {
	var req *issuance.Request
	err := i.store.do(i.tx, func(st *state) error {
		r, ok := st.requests[id]
		if !ok {
			return wallet.NewNotFoundError(fmt.Sprintf("request %s not found", id))
		}
		req = r.Clone()
		return nil
	})
	return req, err
}

func (i *issuanceStore) ListRequestsByIssuer(ctx context.Context, issuerID string, status issuance.RequestStatus) ([]*issuance.Request, error) {
	result, err := i.listRequests(func(r *issuance.Request) bool {
		return r.IssuerID == issuerID && r.Status == status
	})
	sortRequests(result, false)
	return result, err
}

func (i *issuanceStore) ListRequestsByHolder(ctx context.Context, holderID string) ([]*issuance.Request, error) {
	result, err := i.listRequests(func(r *issuance.Request) bool { return r.HolderID == holderID })
	sortRequests(result, true)
	return result, err
}

func (i *issuanceStore) DecideRequest(ctx context.Context, id string, d issuance.Decision) (bool, error) {
	var decided bool
	err := i.store.do(i.tx, func(st *state) error {
		r, ok := st.requests[id]
		if !ok {
			return wallet.NewNotFoundError(fmt.Sprintf("request %s not found", id))
		}
		if r.Status != issuance.RequestPending {
			return nil
		}
		at := d.At
		r.Status = d.Status
		r.RejectionReason = d.RejectionReason
		r.CredentialID = d.CredentialID
		r.DecidedAt = &at
		decided = true
		return nil
	})
	return decided, err
}

func (i *issuanceStore) CreateCredential(ctx context.Context, cred *issuance.Credential) error {
	return i.store.do(i.tx, func(st *state) error {
		if _, exists := st.credentials[cred.ID]; exists {
			return wallet.NewAlreadyExistsError(fmt.Sprintf("credential %s already exists", cred.ID))
		}
		if _, exists := st.digests[cred.TokenDigest]; exists {
			return wallet.NewAlreadyExistsError("a credential with this token already exists")
		}
		if cred.RequestID != "" {
			for _, c := range st.credentials {
				if c.RequestID == cred.RequestID {
					return wallet.NewAlreadyExistsError(fmt.Sprintf("a credential was already issued for request %s", cred.RequestID))
				}
			}
		}
		st.credentials[cred.ID] = cred.Clone()
		st.digests[cred.TokenDigest] = cred.ID
		return nil
	})
}

func (i *issuanceStore) GetCredential(ctx context.Context, id string) (*issuance.Credential, error) {
	var cred *issuance.Credential
	err := i.store.do(i.tx, func(st *state) error {
		c, ok := st.credentials[id]
		if !ok {
			return wallet.NewNotFoundError(fmt.Sprintf("credential %s not found", id))
		}
		cred = c.Clone()
		return nil
	})
	return cred, err
}

func (i *issuanceStore) GetCredentialByDigest(ctx context.Context, digest string) (*issuance.Credential, error) {
	var cred *issuance.Credential
	err := i.store.do(i.tx, func(st *state) error {
		id, ok := st.digests[digest]
		if !ok {
			return wallet.NewNotFoundError("credential not found")
		}
		cred = st.credentials[id].Clone()
		return nil
	})
	return cred, err
}

func (i *issuanceStore) ListCredentialsByOwner(ctx context.Context, ownerID string, includeDeleted bool) ([]*issuance.Credential, error) {
	return i.listCredentials(func(c *issuance.Credential) bool {
		return c.OwnerID == ownerID && (includeDeleted || !c.DeletedByHolder)
	})
}

func (i *issuanceStore) ListCredentialsByOrganization(ctx context.Context, organizationID string) ([]*issuance.Credential, error) {
	return i.listCredentials(func(c *issuance.Credential) bool {
		return c.OrganizationID == organizationID && c.Status == issuance.CredentialActive && !c.DeletedByHolder
	})
}

func (i *issuanceStore) RevokeCredential(ctx context.Context, id string, at time.Time) (bool, error) {
	var revoked bool
	err := i.store.do(i.tx, func(st *state) error {
		c, ok := st.credentials[id]
		if !ok {
			return wallet.NewNotFoundError(fmt.Sprintf("credential %s not found", id))
		}
		if c.Status != issuance.CredentialActive {
			return nil
		}
		t := at
		c.Status = issuance.CredentialRevoked
		c.RevokedAt = &t
		revoked = true
		return nil
	})
	return revoked, err
}

func (i *issuanceStore) MarkCredentialDeleted(ctx context.Context, id string, at time.Time) error {
	return i.store.do(i.tx, func(st *state) error {
		c, ok := st.credentials[id]
		if !ok {
			return wallet.NewNotFoundError(fmt.Sprintf("credential %s not found", id))
		}
		if c.DeletedByHolder {
			return nil
		}
		t := at
		c.DeletedByHolder = true
		c.DeletedAt = &t
		return nil
	})
}

func (i *issuanceStore) WithinTx(ctx context.Context, fn func(issuance.Store) error) error {
	return i.store.withinTx(ctx, i.tx, func(st *state) error {
		return fn(&issuanceStore{store: i.store, tx: st})
	})
}

func (i *issuanceStore) listRequests(match func(*issuance.Request) bool) ([]*issuance.Request, error) {
	var result []*issuance.Request
	err := i.store.do(i.tx, func(st *state) error {
		for _, r := range st.requests {
			if match(r) {
				result = append(result, r.Clone())
			}
		}
		return nil
	})
	return result, err
}

func (i *issuanceStore) listCredentials(match func(*issuance.Credential) bool) ([]*issuance.Credential, error) {
	var result []*issuance.Credential
	err := i.store.do(i.tx, func(st *state) error {
		for _, c := range st.credentials {
			if match(c) {
				result = append(result, c.Clone())
			}
		}
		return nil
	})
	sort.Slice(result, func(a, b int) bool {
		if result[a].IssuedAt.Equal(result[b].IssuedAt) {
			return result[a].ID > result[b].ID
		}
		return result[a].IssuedAt.After(result[b].IssuedAt)
	})
	return result, err
}

func sortRequests(reqs []*issuance.Request, newestFirst bool) {
	sort.Slice(reqs, func(a, b int) bool {
		x, y := reqs[a], reqs[b]
		if newestFirst {
			x, y = y, x
		}
		if x.CreatedAt.Equal(y.CreatedAt) {
			return x.ID < y.ID
		}
		return x.CreatedAt.Before(y.CreatedAt)
	})
}
