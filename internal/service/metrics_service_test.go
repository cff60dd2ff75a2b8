package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotask-io/dotask-api/internal/models"
)

func TestMetricsServiceCountsTokenLifecycle(t *testing.T) {
	metrics := NewMetricsService()
	users := &mockTokenUserFinder{user: verifiedUser(t, "secret-password")}
	revoked := NewRevokedTokenService(newMockRevokedStore(), nil)
	codec := NewJWTService(newTestKeyPair(t), newTestTokenConfig(), nil, revoked.ValidateClaims)
	svc := NewTokenService(users, codec, revoked, metrics, nil, nil)
	ctx := context.Background()

	res, err := svc.Request(ctx, models.CredentialsRequest{
		Email:    "user@example.com",
		Password: "secret-password",
	})
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.tokensIssued.WithLabelValues(string(models.TokenTypeAccess))))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.tokensIssued.WithLabelValues(string(models.TokenTypeRefresh))))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.tokensRevoked))

	// Rotation revokes the presented refresh token and issues a new pair.
	_, err = svc.Refresh(ctx, models.RefreshTokenRequest{RefreshToken: res.RefreshToken})
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.tokensRevoked))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.tokensIssued.WithLabelValues(string(models.TokenTypeAccess))))

	require.NoError(t, svc.Revoke(ctx, models.RevokeTokenRequest{Token: res.AccessToken}))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.tokensRevoked))
}

func TestMetricsServiceCountsCacheOperations(t *testing.T) {
	metrics := NewMetricsService()
	store := newMockProjectStore(&models.Project{ID: "proj-1", UserID: "user-1", Name: "Home"})
	cache := newMockListCache()
	svc := NewProjectService(store, cache, time.Minute, metrics, nil, nil)
	ctx := context.Background()
	filter := models.ProjectFilter{UserID: "user-1"}

	_, _, err := svc.List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))

	_, _, err = svc.List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))
}

func TestMetricsServiceNilReceiver(t *testing.T) {
	var metrics *MetricsService

	assert.NotPanics(t, func() {
		metrics.ObserveHTTPRequest("GET", "/tasks", 200, time.Millisecond)
		metrics.RecordCacheOperation(true)
		metrics.RecordTokenIssued(string(models.TokenTypeAccess))
		metrics.RecordTokenRevoked()
	})
	require.NotNil(t, metrics.Handler())
}
