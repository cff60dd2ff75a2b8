package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dotask-io/dotask-api/internal/models"
	"github.com/dotask-io/dotask-api/internal/service"
	"github.com/dotask-io/dotask-api/pkg/config"
	"github.com/dotask-io/dotask-api/pkg/keys"
	"github.com/dotask-io/dotask-api/pkg/response"
)

type stubUserFinder struct {
	user *models.User
}

func (s *stubUserFinder) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, assert.AnError
	}
	return s.user, nil
}

type stubRevokedStore struct {
	records map[string]time.Time
}

func (s *stubRevokedStore) Insert(ctx context.Context, jti string, revokedAt, expiresAt time.Time) error {
	s.records[jti] = expiresAt
	return nil
}

func (s *stubRevokedStore) Exists(ctx context.Context, jti string) (bool, error) {
	_, ok := s.records[jti]
	return ok, nil
}

func (s *stubRevokedStore) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func newTokenTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	private, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pair := &keys.Pair{Private: private, Public: &private.PublicKey}

	cfg := config.TokenConfig{
		Issuer:          "http://localhost:8080",
		Audience:        "dotask-api",
		AccessLifespan:  15 * time.Minute,
		RefreshLifespan: 720 * time.Hour,
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &stubUserFinder{user: &models.User{
		ID:            "user-1",
		Email:         "user@example.com",
		PasswordHash:  string(hash),
		EmailVerified: true,
	}}

	revoked := service.NewRevokedTokenService(&stubRevokedStore{records: map[string]time.Time{}}, nil)
	codec := service.NewJWTService(pair, cfg, nil, revoked.ValidateClaims)
	svc := service.NewTokenService(users, codec, revoked, nil, nil, nil)
	h := NewTokenHandler(svc)

	r := gin.New()
	r.POST("/token", h.Request)
	r.POST("/token/refresh", h.Refresh)
	r.POST("/token/revoke", h.Revoke)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeTokenResponse(t *testing.T, w *httptest.ResponseRecorder) models.TokenResponse {
	t.Helper()
	var envelope struct {
		Data models.TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestTokenHandlerRequest(t *testing.T) {
	r := newTokenTestServer(t)

	w := postJSON(t, r, "/token", models.CredentialsRequest{
		Email:    "user@example.com",
		Password: "secret-password",
	})
	require.Equal(t, http.StatusOK, w.Code)

	res := decodeTokenResponse(t, w)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, int64(900), res.ExpiresIn)
}

func TestTokenHandlerRequestWrongPassword(t *testing.T) {
	r := newTokenTestServer(t)

	w := postJSON(t, r, "/token", models.CredentialsRequest{
		Email:    "user@example.com",
		Password: "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "UNAUTHORIZED", envelope.Error.Code)
	assert.Equal(t, "invalid credentials", envelope.Error.Message)
}

func TestTokenHandlerRequestMalformedBody(t *testing.T) {
	r := newTokenTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/token", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTokenHandlerRefreshRotation(t *testing.T) {
	r := newTokenTestServer(t)

	w := postJSON(t, r, "/token", models.CredentialsRequest{
		Email:    "user@example.com",
		Password: "secret-password",
	})
	require.Equal(t, http.StatusOK, w.Code)
	initial := decodeTokenResponse(t, w)

	w = postJSON(t, r, "/token/refresh", models.RefreshTokenRequest{RefreshToken: initial.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	rotated := decodeTokenResponse(t, w)
	assert.NotEqual(t, initial.RefreshToken, rotated.RefreshToken)

	// Replaying the rotated-away token fails with the generic token error.
	w = postJSON(t, r, "/token/refresh", models.RefreshTokenRequest{RefreshToken: initial.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INVALID_TOKEN", envelope.Error.Code)
}

func TestTokenHandlerRefreshWithAccessToken(t *testing.T) {
	r := newTokenTestServer(t)

	w := postJSON(t, r, "/token", models.CredentialsRequest{
		Email:    "user@example.com",
		Password: "secret-password",
	})
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeTokenResponse(t, w)

	w = postJSON(t, r, "/token/refresh", models.RefreshTokenRequest{RefreshToken: res.AccessToken})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN_TYPE")
}

func TestTokenHandlerRevokeTwice(t *testing.T) {
	r := newTokenTestServer(t)

	w := postJSON(t, r, "/token", models.CredentialsRequest{
		Email:    "user@example.com",
		Password: "secret-password",
	})
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeTokenResponse(t, w)

	w = postJSON(t, r, "/token/revoke", models.RevokeTokenRequest{Token: res.AccessToken})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = postJSON(t, r, "/token/revoke", models.RevokeTokenRequest{Token: res.AccessToken})
	assert.Equal(t, http.StatusNoContent, w.Code)
}
