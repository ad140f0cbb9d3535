package did

// keyprovider.go resolves the kid of a credential token to a public key.
//
// Local identities are looked up in the store. When trusted remote JWKS endpoints are configured
// (TRUSTED_JWKS_URLS) keys of externally hosted issuers are looked up in an auto-refreshing jwk.Cache.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// Status is the local state of an issuer identity, as seen by a verifier
type Status struct {
	// Local is true when the identity is held by this wallet
	Local         bool
	Deactivated   bool
	DeactivatedAt *time.Time
}

// FetchKeys implements the jws.KeyProvider interface for automatic key lookup during JWS verification.
//
// It works like this:
//  1. The caller invokes jws.Verify() with jws.WithKeyProvider(service)
//  2. The jws library passes the signature and message to this FetchKeys() method
//  3. We look up the key based on the kid and add it to the key sink
//  4. The key sink is used by the jws library to verify the signature.
//
// Keys of deactivated identities are still returned: the verifier reports deactivation separately.
func (s *Service) FetchKeys(ctx context.Context, sink jws.KeySink, sig *jws.Signature, _ *jws.Message) error {
	kid, ok := sig.ProtectedHeaders().KeyID()
	if !ok || kid == "" {
		return crypto.NewValidationError("kid is required in token header")
	}

	alg, ok := sig.ProtectedHeaders().Algorithm()
	if !ok || alg.String() != jwa.EdDSA().String() {
		return crypto.NewValidationError("alg must be EdDSA")
	}

	key, err := s.LookupKey(ctx, kid)
	if err != nil {
		return err
	}

	sink.Key(alg, key)
	return nil
}

// LookupKey returns the public key for a key reference, checking local identities first and then
// the trusted remote JWKS endpoints.
func (s *Service) LookupKey(ctx context.Context, kid string) (jwk.Key, error) {
	identifier, err := IdentifierFromKeyReference(kid)
	if err != nil {
		return nil, crypto.WrapKeyManagementError(err, "invalid kid")
	}

	rec, err := s.store.GetIdentity(ctx, identifier)
	switch {
	case err == nil:
		if rec.KeyReference != kid {
			return nil, crypto.NewKeyManagementError(fmt.Sprintf("key %s does not belong to %s", kid, identifier))
		}
		key, err := crypto.ParsePublicJWK(rec.PublicKeyJWK)
		if err != nil {
			return nil, err
		}
		return key, nil
	case !wallet.HasCode(err, wallet.ErrCodeNotFound):
		return nil, err
	}

	if s.remote != nil {
		if key, found := s.remote.Lookup(ctx, kid); found {
			return key, nil
		}
	}

	return nil, crypto.NewKeyManagementError(fmt.Sprintf("key not found: %s", kid))
}

// IdentityStatus reports whether identifier is held locally and whether it has been deactivated.
// Unknown identifiers are reported as non local, not as an error.
func (s *Service) IdentityStatus(ctx context.Context, identifier string) (Status, error) {
	rec, err := s.store.GetIdentity(ctx, identifier)
	if err != nil {
		if wallet.HasCode(err, wallet.ErrCodeNotFound) {
			return Status{}, nil
		}
		return Status{}, err
	}
	return Status{
		Local:         true,
		Deactivated:   rec.Deactivated(),
		DeactivatedAt: rec.DeactivatedAt,
	}, nil
}

// RemoteKeysConfig holds the configuration of the remote key cache
type RemoteKeysConfig struct {
	// URLs are the JWKS endpoints of trusted external issuers
	URLs []string

	// MinRefreshInterval is the minimum interval between JWK cache refreshes.
	MinRefreshInterval time.Duration

	// MaxRefreshInterval is the maximum interval between JWK cache refreshes.
	MaxRefreshInterval time.Duration
}

// RemoteKeys is an auto-refreshing cache of the JWK sets published by trusted external issuers
type RemoteKeys struct {
	cache  *jwk.Cache
	urls   []string
	logger *slog.Logger
}

// NewRemoteKeys creates the cache and registers every URL. Keys are fetched in the background so an
// unreachable endpoint does not block startup.
func NewRemoteKeys(ctx context.Context, cfg RemoteKeysConfig, logger *slog.Logger) (*RemoteKeys, error) {
	if logger == nil {
		return nil, wallet.NewInternalError("logger cannot be nil")
	}

	client := httprc.NewClient()

	cache, err := jwk.NewCache(ctx, client)
	if err != nil {
		return nil, wallet.WrapInternalError(err, "failed to create JWK cache")
	}

	r := &RemoteKeys{
		cache:  cache,
		logger: logger,
	}

	for _, u := range cfg.URLs {
		err := cache.Register(ctx, u,
			jwk.WithMinInterval(cfg.MinRefreshInterval),
			jwk.WithMaxInterval(cfg.MaxRefreshInterval),
			jwk.WithWaitReady(false), // Don't block startup - fetch in background
		)
		if err != nil {
			logger.Warn("failed to register trusted JWKS endpoint",
				slog.String("jwk_url", u),
				slog.String("error", err.Error()))
			continue
		}
		r.urls = append(r.urls, u)
		logger.Info("registered trusted JWKS endpoint for background fetch", slog.String("jwk_url", u))
	}

	logger.Info("remote key cache initialized", slog.Int("endpoints_registered", len(r.urls)))
	return r, nil
}

// Lookup finds kid in any of the trusted JWK sets
func (r *RemoteKeys) Lookup(ctx context.Context, kid string) (jwk.Key, bool) {
	for _, u := range r.urls {
		// Get latest keyset from cache (auto-refreshed by jwx library)
		keySet, err := r.cache.Lookup(ctx, u)
		if err != nil {
			r.logger.Debug("failed to lookup JWK set from cache",
				slog.String("jwk_url", u),
				slog.String("error", err.Error()))
			continue
		}

		if key, found := keySet.LookupKeyID(kid); found {
			r.logger.Debug("found remote key", slog.String("kid", kid), slog.String("jwk_url", u))
			return key, true
		}
	}
	return nil, false
}

// Endpoints returns the registered JWKS URLs
func (r *RemoteKeys) Endpoints() []string {
	return append([]string(nil), r.urls...)
}
