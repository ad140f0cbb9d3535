// Package schema provides the read-only catalog of credential schemas offered by issuers.
//
// The catalog is loaded once from a YAML file:
//
//	schemas:
//	  - id: legal-entity
//	    name: LegalEntity
//	    reference: https://schemas.example.org/legal-entity.json
//	    issuerId: issuer-1
package schema

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Bogunok/eudi-wallet/internal/issuance"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

type catalogFile struct {
	Schemas []issuance.Schema `yaml:"schemas"`
}

// Catalog is safe for concurrent use; it is never modified after loading
type Catalog struct {
	byID map[string]issuance.Schema
}

// Load reads the catalog file at path
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML. Every schema needs an id, name, reference and issuerId; ids must be unique.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("invalid schema catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]issuance.Schema, len(file.Schemas))}
	for i, s := range file.Schemas {
		s.ID = strings.TrimSpace(s.ID)
		switch {
		case s.ID == "":
			return nil, fmt.Errorf("schema %d: id is required", i)
		case strings.TrimSpace(s.Name) == "":
			return nil, fmt.Errorf("schema %s: name is required", s.ID)
		case strings.ContainsAny(s.Name, " \t\n"):
			return nil, fmt.Errorf("schema %s: name is used as a credential type and must not contain whitespace", s.ID)
		case strings.TrimSpace(s.Reference) == "":
			return nil, fmt.Errorf("schema %s: reference is required", s.ID)
		case strings.TrimSpace(s.IssuerID) == "":
			return nil, fmt.Errorf("schema %s: issuerId is required", s.ID)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("schema %s is defined more than once", s.ID)
		}
		c.byID[s.ID] = s
	}
	return c, nil
}

// Lookup returns the schema with the given id
func (c *Catalog) Lookup(_ context.Context, schemaID string) (issuance.Schema, error) {
	s, ok := c.byID[schemaID]
	if !ok {
		return issuance.Schema{}, wallet.NewNotFoundError(fmt.Sprintf("schema %s not found", schemaID))
	}
	return s, nil
}

// ListByIssuer returns the schemas offered by issuerID sorted by id
func (c *Catalog) ListByIssuer(issuerID string) []issuance.Schema {
	var result []issuance.Schema
	for _, s := range c.byID {
		if s.IssuerID == issuerID {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Len returns the number of schemas
func (c *Catalog) Len() int {
	return len(c.byID)
}
