package vc

import (
	"crypto/ed25519"
	"encoding/json"
	"time"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// Body is the claim set of a credential token
type Body struct {
	Issuer   string          `json:"iss"`
	Subject  string          `json:"sub"`
	IssuedAt int64           `json:"iat"`
	VC       json.RawMessage `json:"vc"`
}

// Signer produces credential tokens
type Signer struct {
	now func() time.Time
}

// NewSigner returns a Signer using now as the iat clock (time.Now when nil)
func NewSigner(now func() time.Time) *Signer {
	if now == nil {
		now = time.Now
	}
	return &Signer{now: now}
}

// Sign returns the compact token for payload signed by privateKey, with iat read from the signer's clock.
// The key is not retained; the caller remains responsible for zeroing it.
func (s *Signer) Sign(payload CanonicalPayload, issuerIdentifier, subjectIdentifier, keyReference string, privateKey ed25519.PrivateKey) (string, error) {
	return s.SignAt(payload, issuerIdentifier, subjectIdentifier, keyReference, s.now(), privateKey)
}

// SignAt is Sign with an explicit issue time. Callers that also record the issue time pass the same
// instant here so the stored value and iat agree. Sub-second precision is dropped.
func (s *Signer) SignAt(payload CanonicalPayload, issuerIdentifier, subjectIdentifier, keyReference string, issuedAt time.Time, privateKey ed25519.PrivateKey) (string, error) {
	if len(payload) == 0 {
		return "", wallet.NewValidationError("payload is empty")
	}
	if issuerIdentifier == "" || subjectIdentifier == "" {
		return "", wallet.NewValidationError("issuer and subject are required")
	}
	if keyReference == "" {
		return "", wallet.NewValidationError("key reference is required")
	}

	body := Body{
		Issuer:   issuerIdentifier,
		Subject:  subjectIdentifier,
		IssuedAt: issuedAt.Unix(),
		VC:       json.RawMessage(payload),
	}

	token, err := crypto.SignCompact(crypto.NewTokenHeader(keyReference), body, privateKey)
	if err != nil {
		return "", wallet.WrapInternalError(err, "failed to sign credential")
	}
	return token, nil
}
