package schema

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

const validCatalog = `
schemas:
  - id: legal-entity
    name: LegalEntity
    reference: https://schemas.example.org/legal-entity.json
    issuerId: issuer-1
  - id: diploma
    name: UniversityDegree
    reference: https://schemas.example.org/diploma.json
    issuerId: issuer-2
  - id: address
    name: RegisteredAddress
    reference: https://schemas.example.org/address.json
    issuerId: issuer-1
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(validCatalog))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}

	s, err := c.Lookup(context.Background(), "diploma")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if s.Name != "UniversityDegree" || s.IssuerID != "issuer-2" {
		t.Errorf("Lookup() = %+v", s)
	}

	_, err = c.Lookup(context.Background(), "unknown")
	if !wallet.HasCode(err, wallet.ErrCodeNotFound) {
		t.Errorf("Lookup(unknown) error = %v, want not found", err)
	}

	issuer1 := c.ListByIssuer("issuer-1")
	if len(issuer1) != 2 || issuer1[0].ID != "address" || issuer1[1].ID != "legal-entity" {
		t.Errorf("ListByIssuer() = %+v", issuer1)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing id",
			yaml:    "schemas:\n  - name: A\n    reference: r\n    issuerId: i\n",
			wantErr: "id is required",
		},
		{
			name:    "missing issuer",
			yaml:    "schemas:\n  - id: a\n    name: A\n    reference: r\n",
			wantErr: "issuerId is required",
		},
		{
			name:    "name with spaces",
			yaml:    "schemas:\n  - id: a\n    name: Legal Entity\n    reference: r\n    issuerId: i\n",
			wantErr: "whitespace",
		},
		{
			name:    "duplicate id",
			yaml:    "schemas:\n  - {id: a, name: A, reference: r, issuerId: i}\n  - {id: a, name: B, reference: r, issuerId: i}\n",
			wantErr: "more than once",
		},
		{
			name:    "unknown field",
			yaml:    "schemas:\n  - {id: a, name: A, reference: r, issuerId: i, owner: x}\n",
			wantErr: "invalid schema catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	if err := os.WriteFile(path, []byte(validCatalog), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
