package crypto

import (
	"bytes"
	"crypto/ed25519"
	"encoding/pem"
	"testing"
)

func TestPrivateKeyPKCS8RoundTrip(t *testing.T) {
	privateKey, err := GenerateEd25519KeyPair()
	if err != nil {
		t.Fatalf("GenerateEd25519KeyPair() error: %v", err)
	}

	der, err := MarshalEd25519PrivateKey(privateKey)
	if err != nil {
		t.Fatalf("MarshalEd25519PrivateKey() error: %v", err)
	}

	parsed, err := ParseEd25519PrivateKey(der)
	if err != nil {
		t.Fatalf("ParseEd25519PrivateKey() error: %v", err)
	}
	if !bytes.Equal(parsed, privateKey) {
		t.Error("parsed key does not match the original")
	}
}

func TestParseEd25519PrivateKey_Invalid(t *testing.T) {
	tests := []struct {
		name string
		der  []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not a key")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEd25519PrivateKey(tt.der); !HasCode(err, ErrCodeKeyManagement) {
				t.Errorf("ParseEd25519PrivateKey() error = %v, want key management error", err)
			}
		})
	}
}

func TestEncodeEd25519PublicKeyPEM(t *testing.T) {
	privateKey, err := GenerateEd25519KeyPair()
	if err != nil {
		t.Fatalf("GenerateEd25519KeyPair() error: %v", err)
	}
	publicKey, err := Ed25519PublicKey(privateKey)
	if err != nil {
		t.Fatalf("Ed25519PublicKey() error: %v", err)
	}

	out, err := EncodeEd25519PublicKeyPEM(publicKey)
	if err != nil {
		t.Fatalf("EncodeEd25519PublicKeyPEM() error: %v", err)
	}
	block, _ := pem.Decode(out)
	if block == nil || block.Type != "PUBLIC KEY" {
		t.Fatalf("unexpected PEM output: %s", out)
	}

	if _, err := EncodeEd25519PublicKeyPEM(ed25519.PublicKey{1, 2, 3}); err == nil {
		t.Error("expected error for short public key")
	}
}
