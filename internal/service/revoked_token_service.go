package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dotask-io/dotask-api/internal/models"
)

// RevokedTokenStore is the persistence surface the revocation service needs.
type RevokedTokenStore interface {
	Insert(ctx context.Context, jti string, revokedAt, expiresAt time.Time) error
	Exists(ctx context.Context, jti string) (bool, error)
	DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error)
}

// RevokedTokenService tracks dead token ids until their natural expiry.
type RevokedTokenService struct {
	store  RevokedTokenStore
	logger *zap.Logger
}

// NewRevokedTokenService creates a new instance of RevokedTokenService.
func NewRevokedTokenService(store RevokedTokenStore, logger *zap.Logger) *RevokedTokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevokedTokenService{store: store, logger: logger}
}

// Revoke marks the token id as dead. Revoking an already revoked id
// succeeds without effect.
func (s *RevokedTokenService) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if err := s.store.Insert(ctx, jti, time.Now().UTC(), expiresAt); err != nil {
		return err
	}
	s.logger.Debug("token revoked", zap.String("jti", jti), zap.Time("expires_at", expiresAt))
	return nil
}

// IsRevoked reports whether the token id has been revoked.
func (s *RevokedTokenService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.store.Exists(ctx, jti)
}

// ValidateClaims is the ClaimsValidator hooked into the token codec. A
// store failure rejects the token rather than letting a possibly
// revoked one through.
func (s *RevokedTokenService) ValidateClaims(ctx context.Context, claims *models.TokenClaims) error {
	revoked, err := s.IsRevoked(ctx, claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return errors.New("token has been revoked")
	}
	return nil
}

// SweepExpired deletes revocation records whose tokens have expired on
// their own and reports how many were removed.
func (s *RevokedTokenService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	deleted, err := s.store.DeleteExpiredBefore(ctx, now)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("swept expired revocation records", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

// StartSweeper runs SweepExpired on the given interval until the
// context is cancelled.
func (s *RevokedTokenService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepExpired(ctx, time.Now().UTC()); err != nil {
					s.logger.Error("revocation sweep failed", zap.Error(err))
				}
			}
		}
	}()
}
