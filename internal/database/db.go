// Package database is the Postgres implementation of did.Store and issuance.Store.
//
// Queries are plain SQL run through pgx. Every write that guards a state transition is a single
// conditional UPDATE (compare-and-swap), so no row locks are held across key derivation or signing.
// Schema migrations are embedded and applied with goose.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bogunok/eudi-wallet/internal/config"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

const uniqueViolation = "23505"

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the wallet's SQL against a pool or a transaction
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// Connect creates a pool from the server configuration and checks the database is reachable
func Connect(ctx context.Context, cfg *config.ServerEnvironment) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.DBMaxConnections
	poolConfig.MinConns = cfg.DBMinConnections
	poolConfig.MaxConnLifetime = cfg.DBMaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.DBMaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.DBConnectTimeout

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DatabasePingTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}
	return pool, nil
}

// Store owns the pool and hands out the per-domain stores
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Identities() *IdentityStore {
	return &IdentityStore{pool: s.pool, q: New(s.pool)}
}

func (s *Store) Issuance() *IssuanceStore {
	return &IssuanceStore{pool: s.pool, q: New(s.pool)}
}

// Ping reports whether the database is reachable (readiness check)
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

// inTx runs fn in a transaction on pool. When pool is nil the caller is already inside one and q is reused.
func inTx(ctx context.Context, pool *pgxpool.Pool, q *Queries, fn func(*Queries) error) error {
	if pool == nil {
		return fn(q)
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		return fn(q.WithTx(tx))
	})
}

// translateError maps pgx errors to wallet errors
func translateError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return wallet.NewNotFoundError(notFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return wallet.WrapAlreadyExistsError(err, fmt.Sprintf("already exists (%s)", pgErr.ConstraintName))
	}
	var walletErr *wallet.WalletError
	if errors.As(err, &walletErr) {
		return err
	}
	return wallet.WrapInternalError(err, "database error")
}
