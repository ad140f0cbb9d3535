package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Netflix/go-env"
)

// storage backends
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// JWKCacheHTTPTimeout bounds each fetch of a trusted remote JWKS
const JWKCacheHTTPTimeout = 30 * time.Second

// Environment variables with defaults
type ServerEnvironment struct {

	// http server settings
	Environment           string        `env:"ENVIRONMENT,default=dev"`
	Host                  string        `env:"HOST,default=0.0.0.0"`
	Port                  int           `env:"PORT,default=8080"`
	LogLevel              string        `env:"LOG_LEVEL,default=debug"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=30s"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	MaxRequestSize        int64         `env:"MAX_REQUEST_SIZE,default=1048576"`
	RateLimitRPS          int32         `env:"RATE_LIMIT_RPS,default=100"`
	RateLimitBurst        int32         `env:"RATE_LIMIT_BURST,default=200"`
	PinAttemptsPerMinute  int32         `env:"PIN_ATTEMPTS_PER_MINUTE,default=10"`

	// storage settings
	Storage             string        `env:"STORAGE,default=postgres"`
	DatabaseURL         string        `env:"DATABASE_URL"`
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS,default=4"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS,default=0"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME,default=60m"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME,default=30m"`
	DBConnectTimeout    time.Duration `env:"DB_CONNECT_TIMEOUT,default=5s"`
	DatabasePingTimeout time.Duration `env:"DATABASE_PING_TIMEOUT,default=10s"`
	AutoMigrate         bool          `env:"AUTO_MIGRATE,default=false"`

	// key sealing settings (argon2id costs are fixed for the life of the process)
	KDFTime           int32 `env:"KDF_TIME,default=2"`
	KDFMemoryKB       int32 `env:"KDF_MEMORY_KB,default=65536"`
	KDFThreads        int32 `env:"KDF_THREADS,default=1"`
	KDFMaxConcurrency int32 `env:"KDF_MAX_CONCURRENCY,default=4"`

	// trusted remote issuers (JWKS endpoints) and JWK cache settings
	TrustedJWKSURLs    []string      `env:"TRUSTED_JWKS_URLS,separator=|"`
	JWKCacheMinRefresh time.Duration `env:"JWK_CACHE_MIN_REFRESH,default=10m"`
	JWKCacheMaxRefresh time.Duration `env:"JWK_CACHE_MAX_REFRESH,default=12h"`

	// Required configuration - must be set by environment variables
	AuthJWTSecret     string `env:"AUTH_JWT_SECRET,required=true"`
	SchemaCatalogPath string `env:"SCHEMA_CATALOG_PATH,required=true"`
}

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"prod":    true,
	"staging": true,
}

// NewServerConfig loads environment variables and returns a ServerEnvironment struct that contains the values
func NewServerConfig() (*ServerEnvironment, error) {
	var cfg ServerEnvironment

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil

}

// validateConfig checks for required env variables
func validateConfig(cfg *ServerEnvironment) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}
	if cfg.MaxRequestSize < 1 {
		return fmt.Errorf("MAX_REQUEST_SIZE must be at least 1")
	}

	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE=%s", StoragePostgres)
		}
	case StorageMemory:
		if cfg.Environment == "prod" || cfg.Environment == "staging" {
			return fmt.Errorf("STORAGE=%s is not allowed in %s", StorageMemory, cfg.Environment)
		}
	default:
		return fmt.Errorf("invalid STORAGE: %s (expected %s or %s)", cfg.Storage, StoragePostgres, StorageMemory)
	}

	// Validate database pool configuration
	if cfg.DBMaxConnections < 1 {
		return fmt.Errorf("DB_MAX_CONNECTIONS must be at least 1")
	}
	if cfg.DBMinConnections < 0 {
		return fmt.Errorf("DB_MIN_CONNECTIONS must be 0 or greater")
	}
	if cfg.DBMinConnections > cfg.DBMaxConnections {
		return fmt.Errorf("DB_MIN_CONNECTIONS (%d) cannot be greater than DB_MAX_CONNECTIONS (%d)",
			cfg.DBMinConnections, cfg.DBMaxConnections)
	}

	if len(cfg.AuthJWTSecret) < 32 && (cfg.Environment == "prod" || cfg.Environment == "staging") {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters in %s", cfg.Environment)
	}

	if cfg.KDFTime < 1 {
		return fmt.Errorf("KDF_TIME must be at least 1")
	}
	if cfg.KDFThreads < 1 || cfg.KDFThreads > 255 {
		return fmt.Errorf("KDF_THREADS must be between 1 and 255")
	}
	if cfg.KDFMemoryKB < 8*cfg.KDFThreads {
		return fmt.Errorf("KDF_MEMORY_KB must be at least 8 * KDF_THREADS")
	}
	if cfg.KDFMaxConcurrency < 1 {
		return fmt.Errorf("KDF_MAX_CONCURRENCY must be at least 1")
	}

	for _, u := range cfg.TrustedJWKSURLs {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
			return fmt.Errorf("invalid TRUSTED_JWKS_URLS entry: %q", u)
		}
	}
	if cfg.JWKCacheMinRefresh > cfg.JWKCacheMaxRefresh {
		return fmt.Errorf("JWK_CACHE_MIN_REFRESH cannot be greater than JWK_CACHE_MAX_REFRESH")
	}

	return nil
}

// SealParams returns the argon2id costs to apply with crypto.ConfigureSealParams
func (c *ServerEnvironment) SealParams() crypto.SealParams {
	return crypto.SealParams{
		KDFTime:     uint32(c.KDFTime),
		KDFMemoryKB: uint32(c.KDFMemoryKB),
		KDFThreads:  uint8(c.KDFThreads),
	}
}
