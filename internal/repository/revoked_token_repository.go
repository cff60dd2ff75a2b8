package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// RevokedTokenRepository is the durable set of dead token ids. The jti
// column is the primary key, so lookups are indexed point reads and
// inserts can rely on conflict semantics for idempotence.
type RevokedTokenRepository struct {
	db *sqlx.DB
}

// NewRevokedTokenRepository creates a new instance of RevokedTokenRepository.
func NewRevokedTokenRepository(db *sqlx.DB) *RevokedTokenRepository {
	return &RevokedTokenRepository{db: db}
}

// Insert records a revocation. Re-revoking an already revoked id is a
// no-op, not an error, so concurrent revokes of the same token are safe.
func (r *RevokedTokenRepository) Insert(ctx context.Context, jti string, revokedAt, expiresAt time.Time) error {
	const query = `INSERT INTO revoked_tokens (jti, revoked_at, expires_at) VALUES ($1, $2, $3) ON CONFLICT (jti) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, jti, revokedAt, expiresAt); err != nil {
		return fmt.Errorf("insert revoked token: %w", err)
	}
	return nil
}

// Exists is the hot-path point lookup run inside every token decode.
func (r *RevokedTokenRepository) Exists(ctx context.Context, jti string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, jti); err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return exists, nil
}

// DeleteExpiredBefore removes records whose original token expiry has
// passed. Such records carry no value: the token already fails the
// codec's expiry check.
func (r *RevokedTokenRepository) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM revoked_tokens WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("sweep revoked tokens: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep revoked tokens: %w", err)
	}
	return deleted, nil
}
