package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Bogunok/eudi-wallet/internal/config"
	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/database"
	"github.com/Bogunok/eudi-wallet/internal/did"
	"github.com/Bogunok/eudi-wallet/internal/issuance"
	"github.com/Bogunok/eudi-wallet/internal/logger"
	"github.com/Bogunok/eudi-wallet/internal/memstore"
	"github.com/Bogunok/eudi-wallet/internal/metrics"
	"github.com/Bogunok/eudi-wallet/internal/schema"
	"github.com/Bogunok/eudi-wallet/internal/server"
	"github.com/Bogunok/eudi-wallet/internal/version"
)

//	@title			wallet-server
//	@description	wallet-server holds PIN-sealed did:web signing keys and issues W3C verifiable credentials signed with them.
//	@description
//	@description	## Common Error Responses
//	@description	All endpoints may return:
//	@description	- `413` Request body exceeds size limit
//	@description	- `429` Rate limit exceeded
//	@description	- `500` Internal server error
//	@description
//	@description	Individual endpoints document their specific business logic errors.
//	@description
//	@description	## Authentication & Authorization
//	@description
//	@description	Accounts are managed by a separate service. Callers send the HS256 bearer token it issues;
//	@description	the "role" claim (HOLDER, ISSUER or ADMIN) selects the routes the caller may use.
//	@description
//	@description	Signing operations also need the PIN of the signing DID. The PIN is never stored.
//	@license.name	MIT

//	@servers.url			http://localhost:8080
//	@servers.description	Development server

//	@accept		json
//	@produce	json

//	@tag.name			DID
//	@tag.description	Create, resolve and manage did:web identities
//	@tag.name			Holder
//	@tag.description	Credential requests and the holder's wallet
//	@tag.name			Issuer
//	@tag.description	Request decisions, direct issuance and revocation
//	@tag.name			Common
//	@tag.description	Server API endpoints (jwks, health, readiness, version, verification)

func main() {
	cmd := &cobra.Command{
		Use:   "wallet-server",
		Short: "EUDI wallet credential service",
		Long:  `wallet-server manages PIN-sealed DID keys and issues, revokes and verifies verifiable credentials`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	v := version.Get()
	cmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewServerConfig()
	if err != nil {
		log.Printf("failed to load configuration: %v", err.Error())
		os.Exit(1)
	}

	appLogger := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)

	appLogger.Info("Configuration loaded",
		slog.String("ENVIRONMENT", cfg.Environment),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.String("STORAGE", cfg.Storage),
		slog.Bool("AUTO_MIGRATE", cfg.AutoMigrate),
		slog.String("SCHEMA_CATALOG_PATH", cfg.SchemaCatalogPath),
		slog.Int("KDF_MEMORY_KB", int(cfg.KDFMemoryKB)),
		slog.Int("KDF_MAX_CONCURRENCY", int(cfg.KDFMaxConcurrency)),
		slog.Int("TRUSTED_JWKS_URLS", len(cfg.TrustedJWKSURLs)),
	)

	if err := crypto.ConfigureSealParams(cfg.SealParams()); err != nil {
		appLogger.Error("Invalid key sealing parameters", slog.String("error", err.Error()))
		os.Exit(1)
	}

	catalog, err := schema.Load(cfg.SchemaCatalogPath)
	if err != nil {
		appLogger.Error("Failed to load schema catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}
	appLogger.Info("schema catalog loaded", slog.Int("schemas", catalog.Len()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		identityStore did.Store
		issuanceStore issuance.Store
		pinger        interface {
			Ping(ctx context.Context) error
		}
	)

	switch cfg.Storage {
	case config.StoragePostgres:
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			appLogger.Error("Failed to connect to PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			pool.Close()
			appLogger.Info("database connection closed")
		}()
		appLogger.Info("connected to PostgreSQL")

		if cfg.AutoMigrate {
			applied, err := database.Migrate(ctx, pool)
			if err != nil {
				appLogger.Error("Failed to apply migrations", slog.String("error", err.Error()))
				return err
			}
			appLogger.Info("database migrations applied", slog.Int("count", applied))
		}

		store := database.NewStore(pool)
		identityStore, issuanceStore, pinger = store.Identities(), store.Issuance(), store
	default:
		appLogger.Warn("using in-memory storage: data is lost when the server stops")
		store := memstore.New()
		identityStore, issuanceStore, pinger = store.Identities(), store.Issuance(), store
	}

	m := metrics.New()

	var remote *did.RemoteKeys
	if len(cfg.TrustedJWKSURLs) > 0 {
		remote, err = did.NewRemoteKeys(ctx, did.RemoteKeysConfig{
			URLs:               cfg.TrustedJWKSURLs,
			MinRefreshInterval: cfg.JWKCacheMinRefresh,
			MaxRefreshInterval: cfg.JWKCacheMaxRefresh,
		}, appLogger)
		if err != nil {
			appLogger.Error("Failed to create remote key cache", slog.String("error", err.Error()))
			return err
		}
		appLogger.Info("trusting remote issuers", slog.Any("jwks_urls", remote.Endpoints()))
	}

	identities := did.NewService(identityStore, did.Config{
		KDFMaxConcurrency: int64(cfg.KDFMaxConcurrency),
		Remote:            remote,
		Metrics:           m,
	})
	issuer := issuance.NewService(issuanceStore, identities, catalog, issuance.Config{Metrics: m})

	appLogger.Info("Starting server", slog.String("version", version.Get().Version))

	srv, err := server.NewServer(cfg, appLogger, server.Dependencies{
		Identities: identities,
		Issuance:   issuer,
		Schemas:    catalog,
		Store:      pinger,
		Metrics:    m,
	})
	if err != nil {
		appLogger.Error("Failed to create server", slog.String("error", err.Error()))
		return err
	}

	if err := srv.Start(ctx); err != nil {
		appLogger.Error("Server error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("server shutdown complete")
	return nil
}
