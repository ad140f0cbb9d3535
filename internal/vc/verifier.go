package vc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jws"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/did"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// KeyResolver resolves token kids to public keys and reports the state of issuer identities.
// It is implemented by did.Service.
type KeyResolver interface {
	jws.KeyProvider
	IdentityStatus(ctx context.Context, identifier string) (did.Status, error)
}

// VerifiedToken is the result of a successful signature check
type VerifiedToken struct {
	KeyReference string
	Issuer       string
	Subject      string
	IssuedAt     time.Time
	Credential   json.RawMessage

	// IssuerLocal is true when the issuer identity is held by this wallet
	IssuerLocal bool

	// IssuerDeactivated is true when the (local) issuer identity has since been deactivated.
	// The signature is still valid; callers decide how to treat it.
	IssuerDeactivated bool
}

// Verifier checks credential tokens
type Verifier struct {
	keys KeyResolver
}

// NewVerifier returns a Verifier that resolves keys through keys
func NewVerifier(keys KeyResolver) *Verifier {
	return &Verifier{keys: keys}
}

// Verify checks the token's header, signature and issuer binding.
// Any tampering is reported as crypto.ErrCodeInvalidSignature.
func (v *Verifier) Verify(ctx context.Context, token string) (*VerifiedToken, error) {
	header, rawBody, err := crypto.VerifyCompact(ctx, token, v.keys)
	if err != nil {
		return nil, err
	}

	body, err := decodeBody(rawBody)
	if err != nil {
		return nil, crypto.WrapSignatureError(err, "invalid token body")
	}

	keyOwner, err := did.IdentifierFromKeyReference(header.KeyID)
	if err != nil || keyOwner != body.Issuer {
		return nil, crypto.NewSignatureError(fmt.Sprintf("key %s does not belong to issuer %s", header.KeyID, body.Issuer))
	}

	status, err := v.keys.IdentityStatus(ctx, body.Issuer)
	if err != nil {
		return nil, err
	}

	return &VerifiedToken{
		KeyReference:      header.KeyID,
		Issuer:            body.Issuer,
		Subject:           body.Subject,
		IssuedAt:          time.Unix(body.IssuedAt, 0).UTC(),
		Credential:        body.VC,
		IssuerLocal:       status.Local,
		IssuerDeactivated: status.Deactivated,
	}, nil
}

// ParsedToken is the unverified content of a token (used for inspection only)
type ParsedToken struct {
	Header crypto.TokenHeader `json:"header"`
	Body   Body               `json:"body"`
}

// ParseToken decodes header and body without checking the signature
func ParseToken(token string) (*ParsedToken, error) {
	header, err := crypto.ParseHeader(token)
	if err != nil {
		return nil, err
	}
	rawBody, err := crypto.DecodeBody(token)
	if err != nil {
		return nil, err
	}
	body, err := decodeBody(rawBody)
	if err != nil {
		return nil, err
	}
	return &ParsedToken{Header: header, Body: *body}, nil
}

func decodeBody(raw []byte) (*Body, error) {
	var body Body
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		return nil, wallet.WrapValidationError(err, "could not unmarshal token body")
	}
	if body.Issuer == "" || body.Subject == "" || len(body.VC) == 0 {
		return nil, wallet.NewValidationError("token body must contain iss, sub and vc")
	}
	return &body, nil
}
