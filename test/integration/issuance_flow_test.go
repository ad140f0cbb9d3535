//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"testing"

	"github.com/Bogunok/eudi-wallet/internal/did"
	"github.com/Bogunok/eudi-wallet/internal/issuance"
	"github.com/Bogunok/eudi-wallet/internal/server/handlers"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

const (
	universityPIN = "246810"
	studentPIN    = "135790"
)

func setupIdentities(t *testing.T, env *testEnv) (issuerDID, holderDID did.PublicDescriptor) {
	t.Helper()
	env.callAPI(t, http.MethodPost, "/did/generate", &universityCaller,
		handlers.GenerateDIDRequest{PIN: universityPIN, Domain: "university.example"}, http.StatusCreated, &issuerDID)
	env.callAPI(t, http.MethodPost, "/did/generate", &studentCaller,
		handlers.GenerateDIDRequest{PIN: studentPIN, Domain: "student.example"}, http.StatusCreated, &holderDID)
	return issuerDID, holderDID
}

func submitDiplomaRequest(t *testing.T, env *testEnv) issuance.Request {
	t.Helper()
	var req issuance.Request
	env.callAPI(t, http.MethodPost, "/vc/requests", &studentCaller, handlers.SubmitRequestBody{
		IssuerID:  "university",
		SchemaID:  "diploma",
		ClaimData: json.RawMessage(`{"name":"Ada Lovelace","degree":"BSc Mathematics"}`),
	}, http.StatusCreated, &req)
	return req
}

func TestIssuanceLifecycle(t *testing.T) {
	env := startInProcessServer(t)
	defer env.shutdown()

	issuerDID, holderDID := setupIdentities(t, env)
	req := submitDiplomaRequest(t, env)

	var cred handlers.CredentialResponse
	env.callAPI(t, http.MethodPost, "/issuer/requests/"+req.ID+"/approve", &universityCaller,
		handlers.ApproveRequestBody{PIN: universityPIN}, http.StatusCreated, &cred)

	if cred.IssuerIdentifier != issuerDID.Identifier || cred.SubjectIdentifier != holderDID.Identifier {
		t.Fatalf("credential identities = %s -> %s", cred.IssuerIdentifier, cred.SubjectIdentifier)
	}
	if cred.RequestID != req.ID {
		t.Errorf("requestId = %s, want %s", cred.RequestID, req.ID)
	}

	// the stored token is returned unchanged
	var fetched handlers.CredentialResponse
	env.callAPI(t, http.MethodGet, "/vc/"+cred.ID, &studentCaller, nil, http.StatusOK, &fetched)
	if fetched.Token != cred.Token {
		t.Error("stored token differs from the issued token")
	}
	if want := []string{"VerifiableCredential", "UniversityDegree"}; !slices.Equal(fetched.Type, want) {
		t.Errorf("type = %v, want %v", fetched.Type, want)
	}

	var verification issuance.Verification
	env.callAPI(t, http.MethodPost, "/vc/verify", nil, handlers.VerifyBody{Token: cred.Token}, http.StatusOK, &verification)
	if !verification.Valid || !verification.Known || verification.CredentialID != cred.ID {
		t.Fatalf("verification = %+v", verification)
	}

	// the issuer key is published while the DID is active
	var jwks handlers.JWKSResponse
	env.callAPI(t, http.MethodGet, "/.well-known/jwks.json", nil, nil, http.StatusOK, &jwks)
	if len(jwks.Keys) != 2 {
		t.Errorf("got %d published keys, want 2", len(jwks.Keys))
	}

	env.callAPI(t, http.MethodPatch, "/issuer/vc/"+cred.ID+"/revoke", &universityCaller, nil, http.StatusOK, nil)
	env.callAPI(t, http.MethodPost, "/vc/verify", nil, handlers.VerifyBody{Token: cred.Token}, http.StatusOK, &verification)
	if !verification.Revoked {
		t.Error("revocation not reported by verify")
	}

	// revocation only changes the status
	var revoked handlers.CredentialResponse
	env.callAPI(t, http.MethodGet, "/vc/"+cred.ID, &studentCaller, nil, http.StatusOK, &revoked)
	if revoked.Token != fetched.Token || !bytes.Equal(revoked.ClaimPayload, fetched.ClaimPayload) {
		t.Error("token or claims changed by revocation")
	}

	// the holder cannot revoke and another issuer cannot see the credential
	env.callAPI(t, http.MethodPatch, "/issuer/vc/"+cred.ID+"/revoke", &studentCaller, nil, http.StatusForbidden, nil)
	other := wallet.Caller{ID: "employer", Role: wallet.RoleIssuer}
	env.callAPI(t, http.MethodGet, "/vc/"+cred.ID, &other, nil, http.StatusNotFound, nil)

	env.callAPI(t, http.MethodDelete, "/vc/"+cred.ID, &studentCaller, nil, http.StatusNoContent, nil)
	env.callAPI(t, http.MethodDelete, "/vc/"+cred.ID, &studentCaller, nil, http.StatusNoContent, nil)

	var visible []handlers.CredentialResponse
	env.callAPI(t, http.MethodGet, "/vc", &studentCaller, nil, http.StatusOK, &visible)
	if len(visible) != 0 {
		t.Errorf("deleted credential still visible: %+v", visible)
	}
}

func TestConcurrentApprovalIssuesOnce(t *testing.T) {
	env := startInProcessServer(t)
	defer env.shutdown()

	setupIdentities(t, env)
	req := submitDiplomaRequest(t, env)

	const attempts = 5
	statuses := make([]int, attempts)
	token := bearerToken(t, universityCaller)

	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i] = approveStatus(t, env, token, req.ID)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, s := range statuses {
		switch s {
		case http.StatusCreated:
			created++
		case http.StatusBadRequest:
		default:
			t.Errorf("unexpected status %d", s)
		}
	}
	if created != 1 {
		t.Fatalf("%d approvals succeeded, want exactly 1 (statuses %v)", created, statuses)
	}

	var creds []handlers.CredentialResponse
	env.callAPI(t, http.MethodGet, "/vc", &studentCaller, nil, http.StatusOK, &creds)
	if len(creds) != 1 {
		t.Errorf("holder has %d credentials, want 1", len(creds))
	}
}

func TestWrongPinLeavesRequestPending(t *testing.T) {
	env := startInProcessServer(t)
	defer env.shutdown()

	setupIdentities(t, env)
	req := submitDiplomaRequest(t, env)

	var errResp wallet.ErrorResponse
	env.callAPI(t, http.MethodPost, "/issuer/requests/"+req.ID+"/approve", &universityCaller,
		handlers.ApproveRequestBody{PIN: "000000"}, http.StatusUnauthorized, &errResp)

	var pending []issuance.Request
	env.callAPI(t, http.MethodGet, "/issuer/requests", &universityCaller, nil, http.StatusOK, &pending)
	if len(pending) != 1 || pending[0].Status != issuance.RequestPending {
		t.Fatalf("pending = %+v", pending)
	}
}

func TestPinRotationPersists(t *testing.T) {
	env := startInProcessServer(t)
	defer env.shutdown()

	setupIdentities(t, env)

	var rotated handlers.RotatePinResponse
	env.callAPI(t, http.MethodPost, "/did/rotate-pin", &universityCaller,
		handlers.RotatePinRequest{OldPIN: universityPIN, NewPIN: "999999"}, http.StatusOK, &rotated)
	if rotated.Rotated != 1 {
		t.Fatalf("rotated = %d", rotated.Rotated)
	}

	req := submitDiplomaRequest(t, env)
	env.callAPI(t, http.MethodPost, "/issuer/requests/"+req.ID+"/approve", &universityCaller,
		handlers.ApproveRequestBody{PIN: universityPIN}, http.StatusUnauthorized, nil)
	env.callAPI(t, http.MethodPost, "/issuer/requests/"+req.ID+"/approve", &universityCaller,
		handlers.ApproveRequestBody{PIN: "999999"}, http.StatusCreated, nil)
}
