package did_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/did"
	"github.com/Bogunok/eudi-wallet/internal/memstore"
)

const remoteKid = "did:web:issuer.example#key-1"

// newRemoteIssuer serves a JWK set holding one Ed25519 key
func newRemoteIssuer(t *testing.T) *httptest.Server {
	t.Helper()
	privateKey, err := crypto.GenerateEd25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	publicKey, err := crypto.Ed25519PublicKey(privateKey)
	if err != nil {
		t.Fatal(err)
	}
	key, err := crypto.Ed25519PublicKeyToJWK(publicKey, remoteKid)
	if err != nil {
		t.Fatal(err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteKeys(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := newRemoteIssuer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	remote, err := did.NewRemoteKeys(ctx, did.RemoteKeysConfig{
		URLs:               []string{srv.URL + "/.well-known/jwks.json"},
		MinRefreshInterval: time.Minute,
		MaxRefreshInterval: time.Hour,
	}, logger)
	if err != nil {
		t.Fatalf("NewRemoteKeys() error = %v", err)
	}
	if got := remote.Endpoints(); len(got) != 1 || got[0] != srv.URL+"/.well-known/jwks.json" {
		t.Fatalf("Endpoints() = %v", got)
	}

	svc := did.NewService(memstore.New().Identities(), did.Config{KDFMaxConcurrency: 1, Remote: remote})

	// the first fetch runs in the background
	var key jwk.Key
	deadline := time.Now().Add(5 * time.Second)
	for {
		key, err = svc.LookupKey(ctx, remoteKid)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("LookupKey() error = %v", err)
	}
	if kid, _ := key.KeyID(); kid != remoteKid {
		t.Errorf("kid = %q, want %q", kid, remoteKid)
	}

	if _, err := svc.LookupKey(ctx, "did:web:unknown.example#key-1"); err == nil {
		t.Error("LookupKey() of an untrusted issuer succeeded")
	}

	status, err := svc.IdentityStatus(ctx, "did:web:issuer.example")
	if err != nil {
		t.Fatal(err)
	}
	if status.Local {
		t.Error("remote issuer reported as local")
	}
}

func TestNewRemoteKeysRequiresLogger(t *testing.T) {
	if _, err := did.NewRemoteKeys(context.Background(), did.RemoteKeysConfig{}, nil); err == nil {
		t.Error("NewRemoteKeys() without a logger succeeded")
	}
}
