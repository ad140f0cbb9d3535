package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/did"
)

const identityColumns = `identifier, key_reference, public_key_jwk, sealed_ciphertext, sealed_salt, sealed_nonce,
	owner_id, created_at, updated_at, deactivated_at`

type identityRow struct {
	Identifier       string     `db:"identifier"`
	KeyReference     string     `db:"key_reference"`
	PublicKeyJWK     string     `db:"public_key_jwk"`
	SealedCiphertext string     `db:"sealed_ciphertext"`
	SealedSalt       string     `db:"sealed_salt"`
	SealedNonce      string     `db:"sealed_nonce"`
	OwnerID          string     `db:"owner_id"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
	DeactivatedAt    *time.Time `db:"deactivated_at"`
}

func (r *identityRow) record() *did.Record {
	rec := &did.Record{
		Identifier:   r.Identifier,
		KeyReference: r.KeyReference,
		PublicKeyJWK: []byte(r.PublicKeyJWK),
		Sealed: crypto.StoredBlob{
			CiphertextAndTag: r.SealedCiphertext,
			Salt:             r.SealedSalt,
			Nonce:            r.SealedNonce,
		},
		OwnerID:   r.OwnerID,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.DeactivatedAt != nil {
		t := r.DeactivatedAt.UTC()
		rec.DeactivatedAt = &t
	}
	return rec
}

func (q *Queries) CreateIdentity(ctx context.Context, rec *did.Record) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO identities (`+identityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.Identifier, rec.KeyReference, string(rec.PublicKeyJWK),
		rec.Sealed.CiphertextAndTag, rec.Sealed.Salt, rec.Sealed.Nonce,
		rec.OwnerID, rec.CreatedAt, rec.UpdatedAt, rec.DeactivatedAt)
	return err
}

func (q *Queries) GetIdentity(ctx context.Context, identifier string) (*did.Record, error) {
	rows, err := q.db.Query(ctx, `SELECT `+identityColumns+` FROM identities WHERE identifier = $1`, identifier)
	if err != nil {
		return nil, err
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[identityRow])
	if err != nil {
		return nil, err
	}
	return row.record(), nil
}

func (q *Queries) ListIdentitiesByOwner(ctx context.Context, ownerID string) ([]*did.Record, error) {
	return q.listIdentities(ctx, `
		SELECT `+identityColumns+` FROM identities
		WHERE owner_id = $1
		ORDER BY created_at, identifier`, ownerID)
}

func (q *Queries) ListActiveIdentities(ctx context.Context) ([]*did.Record, error) {
	return q.listIdentities(ctx, `
		SELECT `+identityColumns+` FROM identities
		WHERE deactivated_at IS NULL
		ORDER BY created_at, identifier`)
}

func (q *Queries) listIdentities(ctx context.Context, sql string, args ...any) ([]*did.Record, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	result, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[identityRow])
	if err != nil {
		return nil, err
	}
	records := make([]*did.Record, len(result))
	for i, r := range result {
		records[i] = r.record()
	}
	return records, nil
}

// DeactivateIdentity returns the number of rows changed (0 when already deactivated or unknown)
func (q *Queries) DeactivateIdentity(ctx context.Context, identifier string, at time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE identities SET deactivated_at = $2, updated_at = $2
		WHERE identifier = $1 AND deactivated_at IS NULL`,
		identifier, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReplaceSealedKey returns the number of rows changed (0 when the stored blob no longer matches current)
func (q *Queries) ReplaceSealedKey(ctx context.Context, identifier string, current, replacement crypto.StoredBlob, at time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE identities
		SET sealed_ciphertext = $5, sealed_salt = $6, sealed_nonce = $7, updated_at = $8
		WHERE identifier = $1 AND sealed_ciphertext = $2 AND sealed_salt = $3 AND sealed_nonce = $4`,
		identifier, current.CiphertextAndTag, current.Salt, current.Nonce,
		replacement.CiphertextAndTag, replacement.Salt, replacement.Nonce, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// IdentityStore implements did.Store
type IdentityStore struct {
	// pool is nil inside a transaction
	pool *pgxpool.Pool
	q    *Queries
}

func (s *IdentityStore) CreateIdentity(ctx context.Context, rec *did.Record) error {
	return translateError(s.q.CreateIdentity(ctx, rec), "")
}

func (s *IdentityStore) GetIdentity(ctx context.Context, identifier string) (*did.Record, error) {
	rec, err := s.q.GetIdentity(ctx, identifier)
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("DID %s not found", identifier))
	}
	return rec, nil
}

func (s *IdentityStore) ListIdentitiesByOwner(ctx context.Context, ownerID string) ([]*did.Record, error) {
	records, err := s.q.ListIdentitiesByOwner(ctx, ownerID)
	return records, translateError(err, "")
}

func (s *IdentityStore) ListActiveIdentities(ctx context.Context) ([]*did.Record, error) {
	records, err := s.q.ListActiveIdentities(ctx)
	return records, translateError(err, "")
}

func (s *IdentityStore) DeactivateIdentity(ctx context.Context, identifier string, at time.Time) (bool, error) {
	var changed bool
	err := inTx(ctx, s.pool, s.q, func(q *Queries) error {
		n, err := q.DeactivateIdentity(ctx, identifier, at)
		if err != nil {
			return err
		}
		if n == 0 {
			// distinguish "already deactivated" from "unknown"
			if _, err := q.GetIdentity(ctx, identifier); err != nil {
				return err
			}
		}
		changed = n == 1
		return nil
	})
	return changed, translateError(err, fmt.Sprintf("DID %s not found", identifier))
}

func (s *IdentityStore) ReplaceSealedKey(ctx context.Context, identifier string, current, replacement crypto.StoredBlob, at time.Time) (bool, error) {
	var changed bool
	err := inTx(ctx, s.pool, s.q, func(q *Queries) error {
		n, err := q.ReplaceSealedKey(ctx, identifier, current, replacement, at)
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := q.GetIdentity(ctx, identifier); err != nil {
				return err
			}
		}
		changed = n == 1
		return nil
	})
	return changed, translateError(err, fmt.Sprintf("DID %s not found", identifier))
}

func (s *IdentityStore) WithinTx(ctx context.Context, fn func(did.Store) error) error {
	return inTx(ctx, s.pool, s.q, func(q *Queries) error {
		return fn(&IdentityStore{q: q})
	})
}
