package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dotask-io/dotask-api/internal/models"
	appErrors "github.com/dotask-io/dotask-api/pkg/errors"
)

// TokenUserFinder is the slice of the user repository the token
// lifecycle needs.
type TokenUserFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// TokenService drives the token lifecycle: credential exchange,
// refresh rotation and revocation.
type TokenService struct {
	users     TokenUserFinder
	codec     *JWTService
	revoked   *RevokedTokenService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTokenService creates a new instance of TokenService. Metrics may
// be nil.
func NewTokenService(users TokenUserFinder, codec *JWTService, revoked *RevokedTokenService, metrics *MetricsService, v *validator.Validate, logger *zap.Logger) *TokenService {
	if v == nil {
		v = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{
		users:     users,
		codec:     codec,
		revoked:   revoked,
		metrics:   metrics,
		validator: v,
		logger:    logger,
	}
}

// Request exchanges credentials for an access and refresh token pair.
// Unknown email, unverified account and wrong password all return the
// same generic unauthorized error; the distinction is logged server
// side only.
func (s *TokenService) Request(ctx context.Context, req models.CredentialsRequest) (*models.TokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid credentials payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		s.logger.Debug("token request for unknown email", zap.String("email", req.Email))
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	if !user.EmailVerified {
		s.logger.Debug("token request for unverified account", zap.String("user_id", user.ID))
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Debug("token request with wrong password", zap.String("user_id", user.ID))
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	return s.issuePair(user.ID)
}

// Refresh rotates a refresh token: the presented token is revoked
// before the new pair is issued, so each refresh token grants exactly
// one rotation.
func (s *TokenService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.TokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	claims, err := s.codec.Decode(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}

	if claims.Type != models.TokenTypeRefresh {
		return nil, appErrors.Clone(appErrors.ErrInvalidTokenType, "refresh requires a refresh token")
	}

	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate refresh token")
	}
	s.metrics.RecordTokenRevoked()

	return s.issuePair(claims.Subject)
}

// Revoke invalidates a token ahead of its expiry. The token must carry
// a valid signature but may already be revoked; re-revoking succeeds.
func (s *TokenService) Revoke(ctx context.Context, req models.RevokeTokenRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid revoke payload")
	}

	claims, err := s.codec.ParseSigned(req.Token)
	if err != nil {
		return err
	}

	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke token")
	}
	s.metrics.RecordTokenRevoked()
	return nil
}

func (s *TokenService) issuePair(subject string) (*models.TokenResponse, error) {
	access, err := s.codec.Issue(subject, models.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.Issue(subject, models.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued(string(models.TokenTypeAccess))
	s.metrics.RecordTokenIssued(string(models.TokenTypeRefresh))

	return &models.TokenResponse{
		AccessToken:  access.Value,
		RefreshToken: refresh.Value,
		TokenType:    "Bearer",
		ExpiresIn:    access.Claims.ExpiresIn(),
	}, nil
}
