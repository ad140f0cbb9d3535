package vc_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/did"
	"github.com/Bogunok/eudi-wallet/internal/memstore"
	"github.com/Bogunok/eudi-wallet/internal/vc"
)

var issuedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	identities *did.Service
	issuer     *did.Record
	key        ed25519.PrivateKey
	signer     *vc.Signer
	verifier   *vc.Verifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	identities := did.NewService(memstore.New().Identities(), did.Config{})

	issuer, err := identities.CreateIdentity(ctx, "issuer", "1234", "issuer.example")
	if err != nil {
		t.Fatal(err)
	}
	key, err := identities.UnsealRecord(ctx, issuer, "1234")
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		identities: identities,
		issuer:     issuer,
		key:        key,
		signer:     vc.NewSigner(func() time.Time { return issuedAt }),
		verifier:   vc.NewVerifier(identities),
	}
}

func (f *fixture) sign(t *testing.T) string {
	t.Helper()
	in := validInput()
	in.IssuerIdentifier = f.issuer.Identifier
	payload, err := vc.BuildPayload(in)
	if err != nil {
		t.Fatal(err)
	}
	token, err := f.signer.Sign(payload, f.issuer.Identifier, in.SubjectIdentifier, f.issuer.KeyReference, f.key)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return token
}

func TestSignAndVerify(t *testing.T) {
	f := newFixture(t)
	token := f.sign(t)

	if strings.Count(token, ".") != 2 {
		t.Fatalf("token is not compact: %q", token)
	}

	parsed, err := vc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if parsed.Header.KeyID != f.issuer.KeyReference || parsed.Header.Algorithm != "EdDSA" || parsed.Header.Type != "JWT" {
		t.Errorf("header = %+v", parsed.Header)
	}
	if parsed.Body.IssuedAt != issuedAt.Unix() {
		t.Errorf("iat = %d, want %d", parsed.Body.IssuedAt, issuedAt.Unix())
	}

	verified, err := f.verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if verified.Issuer != f.issuer.Identifier || verified.Subject != "did:web:holder.example" {
		t.Errorf("verified = %+v", verified)
	}
	if !verified.IssuerLocal || verified.IssuerDeactivated {
		t.Errorf("issuer status local=%v deactivated=%v", verified.IssuerLocal, verified.IssuerDeactivated)
	}
	if !verified.IssuedAt.Equal(issuedAt) {
		t.Errorf("IssuedAt = %v", verified.IssuedAt)
	}

	var credential vc.Credential
	if err := json.Unmarshal(verified.Credential, &credential); err != nil {
		t.Fatal(err)
	}
	if string(credential.CredentialSubject["id"]) != `"did:web:holder.example"` {
		t.Errorf("credentialSubject.id = %s", credential.CredentialSubject["id"])
	}
}

func TestSignDeterministic(t *testing.T) {
	f := newFixture(t)
	if f.sign(t) != f.sign(t) {
		t.Error("same input and clock produced different tokens")
	}
}

func TestVerifyTampered(t *testing.T) {
	f := newFixture(t)
	token := f.sign(t)
	header, body, signature, err := crypto.SplitCompact(token)
	if err != nil {
		t.Fatal(err)
	}

	forgedBody, err := crypto.EncodeSegment(vc.Body{
		Issuer:   f.issuer.Identifier,
		Subject:  "did:web:mallory.example",
		IssuedAt: issuedAt.Unix(),
		VC:       json.RawMessage(`{"type":["VerifiableCredential"]}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	flipped := []byte(signature)
	if flipped[0] == 'A' {
		flipped[0] = 'B'
	} else {
		flipped[0] = 'A'
	}

	tests := []struct {
		name  string
		token string
	}{
		{"forged body", header + "." + forgedBody + "." + signature},
		{"altered signature", header + "." + body + "." + string(flipped)},
		{"missing signature", header + "." + body + "."},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.verifier.Verify(context.Background(), tt.token)
			if !crypto.HasCode(err, crypto.ErrCodeInvalidSignature) {
				t.Errorf("Verify() error = %v, want invalid signature", err)
			}
		})
	}
}

func TestVerifyEveryCharacterAltered(t *testing.T) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

	f := newFixture(t)
	token := f.sign(t)
	if _, err := f.verifier.Verify(context.Background(), token); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	for i := range len(token) {
		c := token[i]
		if c == '.' {
			continue
		}
		idx := strings.IndexByte(alphabet, c)
		for _, r := range []byte{alphabet[idx^1], alphabet[(idx+1)%64]} {
			altered := token[:i] + string(r) + token[i+1:]
			if _, err := f.verifier.Verify(context.Background(), altered); !crypto.HasCode(err, crypto.ErrCodeInvalidSignature) {
				t.Fatalf("position %d (%q -> %q): Verify() error = %v, want invalid signature", i, c, r, err)
			}
		}
	}
}

func TestVerifyIssuerMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.identities.CreateIdentity(ctx, "other", "1234", "other.example")
	if err != nil {
		t.Fatal(err)
	}

	// signed with the issuer's key but claiming another identity as iss
	payload, err := vc.BuildPayload(validInput())
	if err != nil {
		t.Fatal(err)
	}
	token, err := f.signer.Sign(payload, other.Identifier, "did:web:holder.example", f.issuer.KeyReference, f.key)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.verifier.Verify(ctx, token)
	if !crypto.HasCode(err, crypto.ErrCodeInvalidSignature) {
		t.Errorf("Verify() error = %v, want invalid signature", err)
	}
}

func TestVerifyUnknownKey(t *testing.T) {
	f := newFixture(t)

	_, strangerKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := vc.BuildPayload(validInput())
	if err != nil {
		t.Fatal(err)
	}
	token, err := f.signer.Sign(payload, "did:web:stranger.example", "did:web:holder.example", "did:web:stranger.example#key-1", strangerKey)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.verifier.Verify(context.Background(), token)
	if !crypto.HasCode(err, crypto.ErrCodeInvalidSignature) {
		t.Errorf("Verify() error = %v, want invalid signature", err)
	}
}

func TestVerifyDeactivatedIssuer(t *testing.T) {
	f := newFixture(t)
	token := f.sign(t)

	before, err := vc.ParseToken(token)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.identities.Deactivate(context.Background(), f.issuer.Identifier, "issuer"); err != nil {
		t.Fatal(err)
	}

	verified, err := f.verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !verified.IssuerDeactivated {
		t.Error("IssuerDeactivated = false, want true")
	}
	if !bytes.Equal(verified.Credential, before.Body.VC) {
		t.Errorf("credential after deactivation = %s, want %s", verified.Credential, before.Body.VC)
	}
}

func TestSignValidation(t *testing.T) {
	f := newFixture(t)
	payload, err := vc.BuildPayload(validInput())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.signer.Sign(nil, "did:web:a", "did:web:b", "did:web:a#key-1", f.key); err == nil {
		t.Error("expected error for empty payload")
	}
	if _, err := f.signer.Sign(payload, "", "did:web:b", "did:web:a#key-1", f.key); err == nil {
		t.Error("expected error for missing issuer")
	}
	if _, err := f.signer.Sign(payload, "did:web:a", "did:web:b", "", f.key); err == nil {
		t.Error("expected error for missing key reference")
	}
}
