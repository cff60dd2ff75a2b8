package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dotask-io/dotask-api/internal/models"
	"github.com/dotask-io/dotask-api/pkg/config"
	appErrors "github.com/dotask-io/dotask-api/pkg/errors"
	"github.com/dotask-io/dotask-api/pkg/keys"
)

// ClaimsValidator inspects decoded claims and rejects the token by
// returning an error. Validators run in registration order after the
// signature, issuer, audience and expiry checks have passed.
type ClaimsValidator func(ctx context.Context, claims *models.TokenClaims) error

// JWTService is the token codec: it turns a (subject, type) pair into a
// signed token string and a token string back into validated claims.
// Signing is RS256 with an externally provisioned key pair.
type JWTService struct {
	keyPair    *keys.Pair
	issuer     string
	audience   string
	lifespans  map[models.TokenType]time.Duration
	validators []ClaimsValidator
	logger     *zap.Logger
}

// NewJWTService constructs the codec. Validators are optional; the
// revocation check is registered here by the caller so every decode
// consults the revocation store.
func NewJWTService(keyPair *keys.Pair, cfg config.TokenConfig, logger *zap.Logger, validators ...ClaimsValidator) *JWTService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JWTService{
		keyPair:  keyPair,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		lifespans: map[models.TokenType]time.Duration{
			models.TokenTypeAccess:  cfg.AccessLifespan,
			models.TokenTypeRefresh: cfg.RefreshLifespan,
		},
		validators: validators,
		logger:     logger,
	}
}

// Issue signs a fresh token for the subject. Expiry math is done in
// whole seconds on the server clock; the jti is a random UUID used as
// the revocation key.
func (s *JWTService) Issue(subject string, tokenType models.TokenType) (*models.IssuedToken, error) {
	now := time.Now().UTC().Truncate(time.Second)
	claims := &models.TokenClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifespans[tokenType])),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.keyPair.Private)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	return &models.IssuedToken{Value: signed, Claims: claims}, nil
}

// Decode verifies a token string end to end: signature, issuer,
// audience, expiry, then every registered claim validator. All
// failures collapse to the same INVALID_TOKEN error so callers cannot
// distinguish a forged token from an expired or revoked one; the real
// cause is kept for server-side logs only.
func (s *JWTService) Decode(ctx context.Context, tokenString string) (*models.TokenClaims, error) {
	claims, err := s.ParseSigned(tokenString)
	if err != nil {
		return nil, err
	}

	for _, validate := range s.validators {
		if err := validate(ctx, claims); err != nil {
			s.logger.Debug("token rejected by claim validator", zap.String("jti", claims.ID), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, "invalid token")
		}
	}

	return claims, nil
}

// ParseSigned verifies signature, issuer, audience and expiry without
// running the registered claim validators. The revocation flow uses it
// so that an already-revoked token can still be identified for an
// idempotent re-revoke.
func (s *JWTService) ParseSigned(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&models.TokenClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return s.keyPair.Public, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		s.logger.Debug("token parse failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
	}

	// The type claim is mandatory; a token without one is rejected here
	// rather than by downstream type checks.
	if claims.Type == "" {
		s.logger.Debug("token missing type claim", zap.String("jti", claims.ID))
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
	}

	return claims, nil
}
