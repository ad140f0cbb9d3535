package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/Bogunok/eudi-wallet/internal/auth"
	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/did"
	"github.com/Bogunok/eudi-wallet/internal/vc"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// run executes walletctl with args and returns stdout
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-level", "none"))
	err := rootCmd.Execute()
	return out.String(), err
}

func signedToken(t *testing.T) string {
	t.Helper()
	priv, err := crypto.GenerateEd25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	payload, err := vc.BuildPayload(vc.PayloadInput{
		IssuerIdentifier:  "did:web:issuer.example",
		SubjectIdentifier: "did:web:holder.example",
		CredentialType:    "UniversityDegree",
		SchemaReference:   "https://schemas.example.org/diploma.json",
		Claims:            json.RawMessage(`{"degree":"BSc"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	token, err := vc.NewSigner(nil).Sign(payload, "did:web:issuer.example", "did:web:holder.example",
		"did:web:issuer.example#key-1", priv)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestTokenInspect(t *testing.T) {
	out, err := run(t, "token", "inspect", signedToken(t))
	if err != nil {
		t.Fatalf("inspect failed: %v\n%s", err, out)
	}

	var decoded struct {
		Header crypto.TokenHeader `json:"header"`
		Body   struct {
			Issuer string         `json:"iss"`
			VC     map[string]any `json:"vc"`
		} `json:"body"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if decoded.Header.KeyID != "did:web:issuer.example#key-1" {
		t.Errorf("kid = %s", decoded.Header.KeyID)
	}
	if decoded.Body.Issuer != "did:web:issuer.example" || decoded.Body.VC == nil {
		t.Errorf("body = %+v", decoded.Body)
	}

	if _, err := run(t, "token", "inspect", "not.a.token"); err == nil {
		t.Error("expected an error for a malformed token")
	}
}

func TestTokenVerify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		wantErr  string
	}{
		{"valid", http.StatusOK, `{"valid":true,"known":true,"issuer":"did:web:issuer.example"}`, ""},
		{"invalid signature", http.StatusOK, `{"valid":false}`, "not valid"},
		{"revoked", http.StatusOK, `{"valid":true,"known":true,"revoked":true,"credentialId":"c1"}`, "revoked"},
		{"server error", http.StatusBadRequest, `{"statusCode":400,"statusCodeText":"Bad Request","errorCode":"VALIDATION_ERROR","message":"jwt is required"}`, "jwt is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/vc/verify" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			_, err := run(t, "token", "verify", "a.b.c", "--server", srv.URL)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got error %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestAuthToken(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"

	out, err := run(t, "auth", "token", "--secret", secret, "--sub", "issuer-1", "--role", "ISSUER")
	if err != nil {
		t.Fatalf("auth token failed: %v", err)
	}

	caller, err := auth.Parse([]byte(secret), strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("minted token does not parse: %v", err)
	}
	if caller.ID != "issuer-1" || caller.Role != wallet.RoleIssuer {
		t.Errorf("caller = %+v", caller)
	}

	if _, err := run(t, "auth", "token", "--secret", secret, "--sub", "x", "--role", "ROOT"); err == nil {
		t.Error("expected an error for an unknown role")
	}
}

func TestDIDResolveRejectsNonWebIdentifier(t *testing.T) {
	if _, err := run(t, "did", "resolve", "did:key:z6Mk"); err == nil {
		t.Error("expected an error for a did:key identifier")
	}
}

func testRecord(t *testing.T) *did.Record {
	t.Helper()
	priv, err := crypto.GenerateEd25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	pub, err := crypto.Ed25519PublicKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	jwkJSON, err := crypto.MarshalPublicJWK(pub, "did:web:issuer.example#key-1")
	if err != nil {
		t.Fatal(err)
	}
	return &did.Record{
		Identifier:   "did:web:issuer.example",
		KeyReference: "did:web:issuer.example#key-1",
		PublicKeyJWK: jwkJSON,
	}
}

func TestDIDResolve(t *testing.T) {
	rec := testRecord(t)
	result, err := did.BuildDocument(rec)
	if err != nil {
		t.Fatal(err)
	}

	// a document whose multibase key does not match its JWK
	other, err := did.BuildDocument(testRecord(t))
	if err != nil {
		t.Fatal(err)
	}
	mismatched := *result
	mismatched.Document.VerificationMethod = []did.VerificationMethod{result.Document.VerificationMethod[0]}
	mismatched.Document.VerificationMethod[0].PublicKeyMultibase = other.Document.VerificationMethod[0].PublicKeyMultibase

	tests := []struct {
		name     string
		document *did.ResolutionResult
		wantErr  bool
	}{
		{"consistent document", result, false},
		{"mismatched keys", &mismatched, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/did/resolve/did:web:issuer.example" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				_ = json.NewEncoder(w).Encode(tt.document)
			}))
			defer srv.Close()

			out, err := run(t, "did", "resolve", rec.Identifier, "--server", srv.URL)
			if (err != nil) != tt.wantErr {
				t.Fatalf("got error %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out, rec.KeyReference) {
				t.Errorf("document not printed:\n%s", out)
			}
		})
	}
}

func TestJWKSFetch(t *testing.T) {
	rec := testRecord(t)
	key, err := crypto.ParsePublicJWK(rec.PublicKeyJWK)
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
	defer srv.Close()

	out, err := run(t, "jwks", "fetch", srv.URL+"/.well-known/jwks.json", "--pem")
	if err != nil {
		t.Fatalf("jwks fetch failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, rec.KeyReference) {
		t.Errorf("kid missing from output:\n%s", out)
	}
	if !strings.Contains(out, "BEGIN PUBLIC KEY") {
		t.Errorf("PEM missing from output:\n%s", out)
	}
}
