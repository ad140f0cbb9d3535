package config

import (
	"strings"
	"testing"
)

func validConfig() ServerEnvironment {
	return ServerEnvironment{
		Environment:        "dev",
		Port:               8080,
		MaxRequestSize:     1024,
		Storage:            StorageMemory,
		DBMaxConnections:   4,
		KDFTime:            2,
		KDFMemoryKB:        65536,
		KDFThreads:         1,
		KDFMaxConcurrency:  4,
		AuthJWTSecret:      "secret",
		SchemaCatalogPath:  "schemas.yaml",
		JWKCacheMinRefresh: 1,
		JWKCacheMaxRefresh: 2,
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*ServerEnvironment)
		wantErr string
	}{
		{"valid", func(*ServerEnvironment) {}, ""},
		{"bad port", func(c *ServerEnvironment) { c.Port = 0 }, "PORT"},
		{"bad environment", func(c *ServerEnvironment) { c.Environment = "qa" }, "ENVIRONMENT"},
		{"postgres without url", func(c *ServerEnvironment) { c.Storage = StoragePostgres }, "DATABASE_URL"},
		{"postgres with url", func(c *ServerEnvironment) {
			c.Storage = StoragePostgres
			c.DatabaseURL = "postgres://localhost/wallet"
		}, ""},
		{"unknown storage", func(c *ServerEnvironment) { c.Storage = "sqlite" }, "STORAGE"},
		{"memory storage in prod", func(c *ServerEnvironment) {
			c.Environment = "prod"
			c.AuthJWTSecret = strings.Repeat("x", 32)
		}, "STORAGE"},
		{"short secret in prod", func(c *ServerEnvironment) {
			c.Environment = "prod"
			c.Storage = StoragePostgres
			c.DatabaseURL = "postgres://localhost/wallet"
		}, "AUTH_JWT_SECRET"},
		{"min greater than max connections", func(c *ServerEnvironment) { c.DBMinConnections = 5 }, "DB_MIN_CONNECTIONS"},
		{"zero kdf time", func(c *ServerEnvironment) { c.KDFTime = 0 }, "KDF_TIME"},
		{"tiny kdf memory", func(c *ServerEnvironment) { c.KDFMemoryKB = 4 }, "KDF_MEMORY_KB"},
		{"zero kdf concurrency", func(c *ServerEnvironment) { c.KDFMaxConcurrency = 0 }, "KDF_MAX_CONCURRENCY"},
		{"bad jwks url", func(c *ServerEnvironment) { c.TrustedJWKSURLs = []string{"not a url"} }, "TRUSTED_JWKS_URLS"},
		{"good jwks url", func(c *ServerEnvironment) {
			c.TrustedJWKSURLs = []string{"https://issuer.example/.well-known/jwks.json"}
		}, ""},
		{"refresh window inverted", func(c *ServerEnvironment) { c.JWKCacheMinRefresh = 10 }, "JWK_CACHE_MIN_REFRESH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := validateConfig(&cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validateConfig() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validateConfig() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestNewServerConfig_FromEnvironment(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "dev-secret")
	t.Setenv("SCHEMA_CATALOG_PATH", "testdata/schemas.yaml")
	t.Setenv("STORAGE", StorageMemory)
	t.Setenv("TRUSTED_JWKS_URLS", "https://a.example/jwks.json|https://b.example/jwks.json")

	cfg, err := NewServerConfig()
	if err != nil {
		t.Fatalf("NewServerConfig() error: %v", err)
	}
	if cfg.Port != 8080 || cfg.KDFMemoryKB != 65536 || cfg.KDFThreads != 1 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if len(cfg.TrustedJWKSURLs) != 2 {
		t.Errorf("TrustedJWKSURLs = %v, want 2 entries", cfg.TrustedJWKSURLs)
	}
}
