//go:build integration

// functions that are useful in integration tests

package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/Bogunok/eudi-wallet/internal/auth"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

var (
	universityCaller = wallet.Caller{ID: "university", Role: wallet.RoleIssuer}
	studentCaller    = wallet.Caller{ID: "student", Role: wallet.RoleHolder}
)

// bearerToken mints a caller token accepted by the test server
func bearerToken(t *testing.T, caller wallet.Caller) string {
	t.Helper()
	token, err := auth.Issue([]byte(testJWTSecret), caller, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("failed to mint caller token: %v", err)
	}
	return token
}

// callAPI sends a JSON request, checks the status and decodes the response into out (when not nil)
func (e *testEnv) callAPI(t *testing.T, method, path string, caller *wallet.Caller, body any, wantStatus int, out any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, e.baseURL+path, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req.Header.Set("Authorization", "Bearer "+bearerToken(t, *caller))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}

	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: got status %d, want %d (body %s)", method, path, resp.StatusCode, wantStatus, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("%s %s: failed to decode response: %v", method, path, err)
		}
	}
}

// approveStatus approves requestID with a pre-minted token and returns the HTTP status.
// It only uses t.Errorf so it can run on several goroutines.
func approveStatus(t *testing.T, env *testEnv, token, requestID string) int {
	body, _ := json.Marshal(map[string]string{"pin": universityPIN})
	req, err := http.NewRequest(http.MethodPost, env.baseURL+"/issuer/requests/"+requestID+"/approve", bytes.NewReader(body))
	if err != nil {
		t.Errorf("failed to create request: %v", err)
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Errorf("approve failed: %v", err)
		return 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}
