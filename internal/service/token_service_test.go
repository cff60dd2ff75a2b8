package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dotask-io/dotask-api/internal/models"
	appErrors "github.com/dotask-io/dotask-api/pkg/errors"
)

type mockTokenUserFinder struct {
	user *models.User
	err  error
}

func (m *mockTokenUserFinder) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

func newTokenServiceFixture(t *testing.T, users *mockTokenUserFinder) (*TokenService, *mockRevokedStore) {
	t.Helper()
	store := newMockRevokedStore()
	revoked := NewRevokedTokenService(store, nil)
	codec := NewJWTService(newTestKeyPair(t), newTestTokenConfig(), nil, revoked.ValidateClaims)
	return NewTokenService(users, codec, revoked, nil, nil, nil), store
}

func verifiedUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:            "user-1",
		Email:         "user@example.com",
		PasswordHash:  string(hash),
		Name:          "User",
		EmailVerified: true,
	}
}

func TestTokenServiceRequestSuccess(t *testing.T) {
	svc, _ := newTokenServiceFixture(t, &mockTokenUserFinder{user: verifiedUser(t, "secret-password")})

	res, err := svc.Request(context.Background(), models.CredentialsRequest{
		Email:    "user@example.com",
		Password: "secret-password",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.NotEqual(t, res.AccessToken, res.RefreshToken)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, int64(900), res.ExpiresIn)
}

func TestTokenServiceRequestFailuresCollapse(t *testing.T) {
	cases := []struct {
		name     string
		users    *mockTokenUserFinder
		password string
	}{
		{
			name:     "unknown email",
			users:    &mockTokenUserFinder{err: sql.ErrNoRows},
			password: "secret-password",
		},
		{
			name: "unverified account",
			users: &mockTokenUserFinder{user: func() *models.User {
				u := verifiedUser(t, "secret-password")
				u.EmailVerified = false
				return u
			}()},
			password: "secret-password",
		},
		{
			name:     "wrong password",
			users:    &mockTokenUserFinder{user: verifiedUser(t, "secret-password")},
			password: "wrong-password",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTokenServiceFixture(t, tc.users)
			_, err := svc.Request(context.Background(), models.CredentialsRequest{
				Email:    "user@example.com",
				Password: tc.password,
			})
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
			appErr := appErrors.FromError(err)
			assert.Equal(t, "invalid credentials", appErr.Message)
		})
	}
}

func TestTokenServiceRequestValidation(t *testing.T) {
	svc, _ := newTokenServiceFixture(t, &mockTokenUserFinder{})

	_, err := svc.Request(context.Background(), models.CredentialsRequest{Email: "not-an-email"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestTokenServiceRefreshRotation(t *testing.T) {
	svc, _ := newTokenServiceFixture(t, &mockTokenUserFinder{user: verifiedUser(t, "secret-password")})
	ctx := context.Background()

	initial, err := svc.Request(ctx, models.CredentialsRequest{
		Email:    "user@example.com",
		Password: "secret-password",
	})
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, models.RefreshTokenRequest{RefreshToken: initial.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, initial.RefreshToken, rotated.RefreshToken)

	// The presented refresh token was revoked during rotation, so a
	// second use must fail.
	_, err = svc.Refresh(ctx, models.RefreshTokenRequest{RefreshToken: initial.RefreshToken})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidToken))

	// The replacement still works.
	_, err = svc.Refresh(ctx, models.RefreshTokenRequest{RefreshToken: rotated.RefreshToken})
	require.NoError(t, err)
}

func TestTokenServiceRefreshRejectsAccessToken(t *testing.T) {
	svc, _ := newTokenServiceFixture(t, &mockTokenUserFinder{user: verifiedUser(t, "secret-password")})
	ctx := context.Background()

	res, err := svc.Request(ctx, models.CredentialsRequest{
		Email:    "user@example.com",
		Password: "secret-password",
	})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, models.RefreshTokenRequest{RefreshToken: res.AccessToken})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTokenType))
}

func TestTokenServiceRevokeIdempotent(t *testing.T) {
	svc, store := newTokenServiceFixture(t, &mockTokenUserFinder{user: verifiedUser(t, "secret-password")})
	ctx := context.Background()

	res, err := svc.Request(ctx, models.CredentialsRequest{
		Email:    "user@example.com",
		Password: "secret-password",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, models.RevokeTokenRequest{Token: res.AccessToken}))
	assert.Len(t, store.records, 1)

	// Revoking an already revoked token succeeds.
	require.NoError(t, svc.Revoke(ctx, models.RevokeTokenRequest{Token: res.AccessToken}))
	assert.Len(t, store.records, 1)
}

func TestTokenServiceRevokeGarbage(t *testing.T) {
	svc, _ := newTokenServiceFixture(t, &mockTokenUserFinder{})

	err := svc.Revoke(context.Background(), models.RevokeTokenRequest{Token: "garbage"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidToken))
}

func TestTokenServiceRevokedAccessTokenFailsDecode(t *testing.T) {
	users := &mockTokenUserFinder{user: verifiedUser(t, "secret-password")}
	store := newMockRevokedStore()
	revoked := NewRevokedTokenService(store, nil)
	codec := NewJWTService(newTestKeyPair(t), newTestTokenConfig(), nil, revoked.ValidateClaims)
	svc := NewTokenService(users, codec, revoked, nil, nil, nil)
	ctx := context.Background()

	res, err := svc.Request(ctx, models.CredentialsRequest{
		Email:    "user@example.com",
		Password: "secret-password",
	})
	require.NoError(t, err)

	_, err = codec.Decode(ctx, res.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, models.RevokeTokenRequest{Token: res.AccessToken}))

	_, err = codec.Decode(ctx, res.AccessToken)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidToken))
}
