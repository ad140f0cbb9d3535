// Package memstore is an in-process implementation of did.Store and issuance.Store.
//
// It is used by unit tests and by the server when STORAGE=memory. Data is lost on restart.
//
// A single mutex guards all state. A transaction holds the mutex for its whole duration and works on a
// copy of the state, which replaces the live state only when the transaction function succeeds.
package memstore

import (
	"context"
	"sync"

	"github.com/Bogunok/eudi-wallet/internal/did"
	"github.com/Bogunok/eudi-wallet/internal/issuance"
)

type state struct {
	identities  map[string]*did.Record
	requests    map[string]*issuance.Request
	credentials map[string]*issuance.Credential

	// token digest -> credential id
	digests map[string]string
}

func newState() *state {
	return &state{
		identities:  make(map[string]*did.Record),
		requests:    make(map[string]*issuance.Request),
		credentials: make(map[string]*issuance.Credential),
		digests:     make(map[string]string),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.identities {
		c.identities[k] = v.Clone()
	}
	for k, v := range st.requests {
		c.requests[k] = v.Clone()
	}
	for k, v := range st.credentials {
		c.credentials[k] = v.Clone()
	}
	for k, v := range st.digests {
		c.digests[k] = v
	}
	return c
}

// Store holds all wallet data in memory
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

// Identities returns the did.Store view
func (s *Store) Identities() did.Store {
	return &identityStore{store: s}
}

// Issuance returns the issuance.Store view
func (s *Store) Issuance() issuance.Store {
	return &issuanceStore{store: s}
}

// Ping always succeeds; it lets the memory store stand in for the database in readiness checks
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// do runs fn against the transaction state when tx is set, or the live state under the lock
func (s *Store) do(tx *state, fn func(*state) error) error {
	if tx != nil {
		return fn(tx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// withinTx runs fn with a copy of the state and commits it when fn succeeds.
// Nested calls reuse the outer transaction.
func (s *Store) withinTx(ctx context.Context, tx *state, fn func(*state) error) error {
	if tx != nil {
		return fn(tx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.st.clone()
	if err := fn(working); err != nil {
		return err
	}
	s.st = working
	return nil
}
