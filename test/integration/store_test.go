//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/database"
	"github.com/Bogunok/eudi-wallet/internal/did"
	"github.com/Bogunok/eudi-wallet/internal/issuance"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

func newPendingRequest() *issuance.Request {
	return &issuance.Request{
		ID:        uuid.NewString(),
		HolderID:  "student",
		IssuerID:  "university",
		SchemaID:  "diploma",
		ClaimData: json.RawMessage(`{"degree":"BSc"}`),
		Status:    issuance.RequestPending,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestMigrationStatus(t *testing.T) {
	pool := setupTestDatabase(t)

	statuses, err := database.Status(context.Background(), pool)
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) == 0 {
		t.Fatal("no migrations found")
	}
	for _, s := range statuses {
		if !s.Applied {
			t.Errorf("migration %d (%s) not applied", s.Version, s.Source)
		}
	}

	// applying again is a no-op
	applied, err := database.Migrate(context.Background(), pool)
	if err != nil {
		t.Fatal(err)
	}
	if applied != 0 {
		t.Errorf("re-applied %d migrations", applied)
	}
}

func TestIdentityStore(t *testing.T) {
	ctx := context.Background()
	store := database.NewStore(setupTestDatabase(t))
	identities := did.NewService(store.Identities(), did.Config{})

	rec, err := identities.CreateIdentity(ctx, "university", universityPIN, "university.example")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("duplicate identifier", func(t *testing.T) {
		dup := rec.Clone()
		err := store.Identities().CreateIdentity(ctx, dup)
		if !wallet.HasCode(err, wallet.ErrCodeAlreadyExists) {
			t.Errorf("got %v, want ALREADY_EXISTS", err)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		got, err := store.Identities().GetIdentity(ctx, rec.Identifier)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Sealed.Equal(rec.Sealed) || string(got.PublicKeyJWK) != string(rec.PublicKeyJWK) {
			t.Error("stored identity differs")
		}
		if _, err := identities.UnsealRecord(ctx, got, universityPIN); err != nil {
			t.Errorf("stored key does not unseal: %v", err)
		}
	})

	t.Run("stale replacement is rejected", func(t *testing.T) {
		stale := crypto.StoredBlob{CiphertextAndTag: "AA==:AA==", Salt: "AA==", Nonce: "AA=="}
		changed, err := store.Identities().ReplaceSealedKey(ctx, rec.Identifier, stale, stale, time.Now())
		if err != nil {
			t.Fatal(err)
		}
		if changed {
			t.Error("replacement applied against a stale blob")
		}
	})

	t.Run("deactivate once", func(t *testing.T) {
		if _, err := identities.Deactivate(ctx, rec.Identifier, "university"); err != nil {
			t.Fatal(err)
		}
		changed, err := store.Identities().DeactivateIdentity(ctx, rec.Identifier, time.Now())
		if err != nil {
			t.Fatal(err)
		}
		if changed {
			t.Error("deactivated twice")
		}
		active, err := store.Identities().ListActiveIdentities(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(active) != 0 {
			t.Errorf("deactivated identity listed as active")
		}
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := store.Identities().GetIdentity(ctx, "did:web:nobody.example")
		if !wallet.HasCode(err, wallet.ErrCodeNotFound) {
			t.Errorf("got %v, want NOT_FOUND", err)
		}
	})
}

func TestIssuanceStore(t *testing.T) {
	ctx := context.Background()
	store := database.NewStore(setupTestDatabase(t))
	requests := store.Issuance()

	req := newPendingRequest()
	if err := requests.CreateRequest(ctx, req); err != nil {
		t.Fatal(err)
	}

	t.Run("non uuid id is not found", func(t *testing.T) {
		_, err := requests.GetRequest(ctx, "not-a-uuid")
		if !wallet.HasCode(err, wallet.ErrCodeNotFound) {
			t.Errorf("got %v, want NOT_FOUND", err)
		}
	})

	t.Run("decide exactly once", func(t *testing.T) {
		d := issuance.Decision{Status: issuance.RequestRejected, RejectionReason: "no", At: time.Now().UTC()}
		changed, err := requests.DecideRequest(ctx, req.ID, d)
		if err != nil || !changed {
			t.Fatalf("first decision: changed=%v err=%v", changed, err)
		}
		d.Status = issuance.RequestApproved
		changed, err = requests.DecideRequest(ctx, req.ID, d)
		if err != nil {
			t.Fatal(err)
		}
		if changed {
			t.Error("a decided request was decided again")
		}

		got, err := requests.GetRequest(ctx, req.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != issuance.RequestRejected || got.RejectionReason != "no" {
			t.Errorf("request = %+v", got)
		}
	})

	t.Run("transaction rolls back", func(t *testing.T) {
		rolledBack := newPendingRequest()
		sentinel := errors.New("abort")

		err := requests.WithinTx(ctx, func(tx issuance.Store) error {
			if err := tx.CreateRequest(ctx, rolledBack); err != nil {
				return err
			}
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Fatalf("got %v, want the callback error", err)
		}
		if _, err := requests.GetRequest(ctx, rolledBack.ID); !wallet.HasCode(err, wallet.ErrCodeNotFound) {
			t.Errorf("rolled back request exists (err %v)", err)
		}
	})

	t.Run("claim bytes are preserved", func(t *testing.T) {
		r := newPendingRequest()
		r.ClaimData = json.RawMessage(`{"b":1,"a":"x"}`)
		if err := requests.CreateRequest(ctx, r); err != nil {
			t.Fatal(err)
		}
		got, err := requests.GetRequest(ctx, r.ID)
		if err != nil {
			t.Fatal(err)
		}
		if string(got.ClaimData) != `{"b":1,"a":"x"}` {
			t.Errorf("claim data = %s", got.ClaimData)
		}
	})
}
