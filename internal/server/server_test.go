package server_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/Bogunok/eudi-wallet/internal/auth"
	"github.com/Bogunok/eudi-wallet/internal/config"
	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/did"
	"github.com/Bogunok/eudi-wallet/internal/issuance"
	"github.com/Bogunok/eudi-wallet/internal/memstore"
	"github.com/Bogunok/eudi-wallet/internal/metrics"
	"github.com/Bogunok/eudi-wallet/internal/schema"
	"github.com/Bogunok/eudi-wallet/internal/server"
	"github.com/Bogunok/eudi-wallet/internal/server/handlers"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	issuerPIN  = "1234"
	holderPIN  = "4321"
)

const testCatalog = `
schemas:
  - id: diploma
    name: UniversityDegree
    reference: https://schemas.example.org/diploma.json
    issuerId: university
`

func TestMain(m *testing.M) {
	if err := crypto.ConfigureSealParams(crypto.SealParams{KDFTime: 1, KDFMemoryKB: 1024, KDFThreads: 1}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testClient struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testClient {
	t.Helper()

	catalog, err := schema.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	mem := memstore.New()
	identities := did.NewService(mem.Identities(), did.Config{Metrics: m})
	svc := issuance.NewService(mem.Issuance(), identities, catalog, issuance.Config{Metrics: m})

	cfg := &config.ServerEnvironment{
		Environment:    "test",
		Host:           "127.0.0.1",
		Port:           8080,
		MaxRequestSize: 1 << 20,
		AuthJWTSecret:  testSecret,
	}
	srv, err := server.NewServer(cfg, slog.New(slog.DiscardHandler), server.Dependencies{
		Identities: identities,
		Issuance:   svc,
		Schemas:    catalog,
		Store:      mem,
		Metrics:    m,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &testClient{t: t, handler: srv.Handler()}
}

func (c *testClient) token(caller wallet.Caller) string {
	c.t.Helper()
	token, err := auth.Issue([]byte(testSecret), caller, time.Hour, time.Now())
	if err != nil {
		c.t.Fatal(err)
	}
	return token
}

// do sends the request and decodes a JSON response into out (when not nil)
func (c *testClient) do(method, path string, caller *wallet.Caller, body any, wantStatus int, out any) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req.Header.Set("Authorization", "Bearer "+c.token(*caller))
	}

	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)

	if rr.Code != wantStatus {
		c.t.Fatalf("%s %s: got status %d, want %d (body %s)", method, path, rr.Code, wantStatus, rr.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			c.t.Fatalf("%s %s: failed to decode response: %v", method, path, err)
		}
	}
	return rr
}

var (
	issuerCaller = wallet.Caller{ID: "university", Role: wallet.RoleIssuer}
	holderCaller = wallet.Caller{ID: "student", Role: wallet.RoleHolder}
)

func TestIssuanceFlow(t *testing.T) {
	c := newTestServer(t)

	var issuerDID did.PublicDescriptor
	c.do(http.MethodPost, "/did/generate", &issuerCaller,
		handlers.GenerateDIDRequest{PIN: issuerPIN, Domain: "university.example"}, http.StatusCreated, &issuerDID)
	if issuerDID.Identifier != "did:web:university.example" {
		t.Fatalf("issuer DID = %s", issuerDID.Identifier)
	}
	c.do(http.MethodPost, "/did/generate", &holderCaller,
		handlers.GenerateDIDRequest{PIN: holderPIN, Domain: "student.example"}, http.StatusCreated, nil)

	var req issuance.Request
	c.do(http.MethodPost, "/vc/requests", &holderCaller, handlers.SubmitRequestBody{
		IssuerID:  "university",
		SchemaID:  "diploma",
		ClaimData: json.RawMessage(`{"degree":"BSc","name":"Ada"}`),
	}, http.StatusCreated, &req)
	if req.Status != issuance.RequestPending {
		t.Fatalf("request status = %s", req.Status)
	}

	var pending []issuance.Request
	c.do(http.MethodGet, "/issuer/requests", &issuerCaller, nil, http.StatusOK, &pending)
	if len(pending) != 1 || pending[0].ID != req.ID {
		t.Fatalf("pending = %+v", pending)
	}

	var errResp wallet.ErrorResponse
	c.do(http.MethodPost, "/issuer/requests/"+req.ID+"/approve", &issuerCaller,
		handlers.ApproveRequestBody{PIN: "9999"}, http.StatusUnauthorized, &errResp)
	if errResp.Message != "invalid PIN or corrupted key data" {
		t.Errorf("wrong PIN message = %q", errResp.Message)
	}

	var cred handlers.CredentialResponse
	c.do(http.MethodPost, "/issuer/requests/"+req.ID+"/approve", &issuerCaller,
		handlers.ApproveRequestBody{PIN: issuerPIN}, http.StatusCreated, &cred)
	if cred.Token == "" || cred.DisplayStatus != issuance.CredentialActive {
		t.Fatalf("credential = %+v", cred)
	}
	if cred.SubjectIdentifier != "did:web:student.example" {
		t.Errorf("subject = %s", cred.SubjectIdentifier)
	}

	// a request is decided once
	c.do(http.MethodPost, "/issuer/requests/"+req.ID+"/approve", &issuerCaller,
		handlers.ApproveRequestBody{PIN: issuerPIN}, http.StatusBadRequest, nil)

	var verification issuance.Verification
	c.do(http.MethodPost, "/vc/verify", nil, handlers.VerifyBody{Token: cred.Token}, http.StatusOK, &verification)
	if !verification.Valid || !verification.Known || verification.Revoked {
		t.Fatalf("verification = %+v", verification)
	}
	if verification.Issuer != issuerDID.Identifier {
		t.Errorf("verified issuer = %s", verification.Issuer)
	}

	var mine []handlers.CredentialResponse
	c.do(http.MethodGet, "/vc", &holderCaller, nil, http.StatusOK, &mine)
	if len(mine) != 1 || mine[0].ID != cred.ID {
		t.Fatalf("holder credentials = %+v", mine)
	}

	c.do(http.MethodPatch, "/issuer/vc/"+cred.ID+"/revoke", &issuerCaller, nil, http.StatusOK, nil)
	c.do(http.MethodPatch, "/issuer/vc/"+cred.ID+"/revoke", &issuerCaller, nil, http.StatusBadRequest, nil)

	c.do(http.MethodPost, "/vc/verify", nil, handlers.VerifyBody{Token: cred.Token}, http.StatusOK, &verification)
	if !verification.Valid || !verification.Revoked {
		t.Fatalf("verification after revoke = %+v", verification)
	}

	c.do(http.MethodDelete, "/vc/"+cred.ID, &holderCaller, nil, http.StatusNoContent, nil)
	c.do(http.MethodGet, "/vc", &holderCaller, nil, http.StatusOK, &mine)
	if len(mine) != 0 {
		t.Fatalf("deleted credential still listed: %+v", mine)
	}
	c.do(http.MethodGet, "/vc?includeDeleted=true", &holderCaller, nil, http.StatusOK, &mine)
	if len(mine) != 1 || mine[0].DisplayStatus != issuance.CredentialDeleted || mine[0].Status != issuance.CredentialRevoked {
		t.Fatalf("includeDeleted = %+v", mine)
	}
}

func TestRejectFlow(t *testing.T) {
	c := newTestServer(t)

	var req issuance.Request
	c.do(http.MethodPost, "/vc/requests", &holderCaller, handlers.SubmitRequestBody{
		IssuerID:  "university",
		SchemaID:  "diploma",
		ClaimData: json.RawMessage(`{"degree":"BSc"}`),
	}, http.StatusCreated, &req)

	var rejected issuance.Request
	c.do(http.MethodPost, "/issuer/requests/"+req.ID+"/reject", &issuerCaller,
		handlers.RejectRequestBody{Reason: "unknown student"}, http.StatusOK, &rejected)
	if rejected.Status != issuance.RequestRejected || rejected.RejectionReason != "unknown student" {
		t.Fatalf("rejected = %+v", rejected)
	}

	var mine []issuance.Request
	c.do(http.MethodGet, "/vc/requests", &holderCaller, nil, http.StatusOK, &mine)
	if len(mine) != 1 || mine[0].Status != issuance.RequestRejected {
		t.Fatalf("holder requests = %+v", mine)
	}

	other := wallet.Caller{ID: "other-issuer", Role: wallet.RoleIssuer}
	c.do(http.MethodPost, "/issuer/requests/"+req.ID+"/reject", &other,
		handlers.RejectRequestBody{Reason: "x"}, http.StatusForbidden, nil)
}

func TestDIDEndpoints(t *testing.T) {
	c := newTestServer(t)

	var created did.PublicDescriptor
	c.do(http.MethodPost, "/did/generate", &holderCaller,
		handlers.GenerateDIDRequest{PIN: holderPIN, Domain: "localhost%3A8443"}, http.StatusCreated, &created)
	if created.Identifier != "did:web:localhost%3A8443" {
		t.Fatalf("identifier = %s", created.Identifier)
	}

	// the same identifier cannot be registered twice
	c.do(http.MethodPost, "/did/generate", &issuerCaller,
		handlers.GenerateDIDRequest{PIN: issuerPIN, Domain: "localhost%3A8443"}, http.StatusConflict, nil)

	var resolved did.ResolutionResult
	c.do(http.MethodGet, "/did/resolve/"+url.PathEscape(created.Identifier), nil, nil, http.StatusOK, &resolved)
	if resolved.Document.ID != created.Identifier || len(resolved.Document.VerificationMethod) != 1 {
		t.Fatalf("document = %+v", resolved.Document)
	}

	var rotated handlers.RotatePinResponse
	c.do(http.MethodPost, "/did/rotate-pin", &holderCaller,
		handlers.RotatePinRequest{OldPIN: "0000", NewPIN: "5678"}, http.StatusUnauthorized, nil)
	c.do(http.MethodPost, "/did/rotate-pin", &holderCaller,
		handlers.RotatePinRequest{OldPIN: holderPIN, NewPIN: "5678"}, http.StatusOK, &rotated)
	if rotated.Rotated != 1 {
		t.Errorf("rotated = %d", rotated.Rotated)
	}

	c.do(http.MethodPatch, "/did/deactivate/"+url.PathEscape(created.Identifier), &issuerCaller, nil, http.StatusForbidden, nil)

	var deactivated did.PublicDescriptor
	c.do(http.MethodPatch, "/did/deactivate/"+url.PathEscape(created.Identifier), &holderCaller, nil, http.StatusOK, &deactivated)
	if !deactivated.Deactivated {
		t.Error("identity not deactivated")
	}

	var mine []did.PublicDescriptor
	c.do(http.MethodGet, "/did/mine", &holderCaller, nil, http.StatusOK, &mine)
	if len(mine) != 1 || !mine[0].Deactivated {
		t.Fatalf("mine = %+v", mine)
	}

	var jwks handlers.JWKSResponse
	c.do(http.MethodGet, "/.well-known/jwks.json", nil, nil, http.StatusOK, &jwks)
	if len(jwks.Keys) != 0 {
		t.Errorf("deactivated key published: %+v", jwks.Keys)
	}
}

func TestAccessControl(t *testing.T) {
	c := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		caller     *wallet.Caller
		wantStatus int
	}{
		{"no token", http.MethodGet, "/vc", nil, http.StatusUnauthorized},
		{"issuer on holder route", http.MethodGet, "/vc", &issuerCaller, http.StatusForbidden},
		{"holder on issuer route", http.MethodGet, "/issuer/requests", &holderCaller, http.StatusForbidden},
		{"holder cannot issue", http.MethodPost, "/vc/issue", &holderCaller, http.StatusForbidden},
		{"unknown route", http.MethodGet, "/nowhere", nil, http.StatusNotFound},
		{"unknown credential", http.MethodGet, "/vc/00000000-0000-0000-0000-000000000000", &holderCaller, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp wallet.ErrorResponse
			c.do(tt.method, tt.path, tt.caller, nil, tt.wantStatus, &errResp)
			if errResp.StatusCode != tt.wantStatus {
				t.Errorf("statusCode in body = %d", errResp.StatusCode)
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	c := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/vc/verify", bytes.NewReader([]byte(`{"jwt":"a","extra":1}`)))
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rr.Code)
	}
	var errResp wallet.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.ErrorCode != wallet.ErrCodeMalformedRequest {
		t.Errorf("errorCode = %s", errResp.ErrorCode)
	}
}

func TestInfrastructureEndpoints(t *testing.T) {
	c := newTestServer(t)

	c.do(http.MethodGet, "/health/live", nil, nil, http.StatusOK, nil)

	var ready handlers.ReadinessResponse
	c.do(http.MethodGet, "/health/ready", nil, nil, http.StatusOK, &ready)
	if ready.Status != "ready" || ready.Checks["storage"] != "ok" {
		t.Errorf("readiness = %v", ready)
	}

	var v handlers.VersionResponse
	c.do(http.MethodGet, "/version", nil, nil, http.StatusOK, &v)
	if v.Service != server.ServiceName {
		t.Errorf("service = %s", v.Service)
	}

	rr := c.do(http.MethodGet, "/metrics", nil, nil, http.StatusOK, nil)
	if !bytes.Contains(rr.Body.Bytes(), []byte("wallet_identities_created_total")) {
		t.Error("wallet counters missing from /metrics")
	}
}
