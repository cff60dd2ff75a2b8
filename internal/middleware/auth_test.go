package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotask-io/dotask-api/internal/models"
	"github.com/dotask-io/dotask-api/internal/service"
	"github.com/dotask-io/dotask-api/pkg/config"
	"github.com/dotask-io/dotask-api/pkg/keys"
)

func newTestCodec(t *testing.T, validators ...service.ClaimsValidator) *service.JWTService {
	t.Helper()
	private, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pair := &keys.Pair{Private: private, Public: &private.PublicKey}
	cfg := config.TokenConfig{
		Issuer:          "http://localhost:8080",
		Audience:        "dotask-api",
		AccessLifespan:  15 * time.Minute,
		RefreshLifespan: 720 * time.Hour,
	}
	return service.NewJWTService(pair, cfg, nil, validators...)
}

func newTestRouter(codec *service.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(codec))

	r.GET("/public", func(c *gin.Context) {
		_, authed := ClaimsFromContext(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": authed})
	})

	private := r.Group("", RequireUser())
	private.GET("/private", func(c *gin.Context) {
		claims, _ := ClaimsFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID()})
	})

	return r
}

func TestAuthenticateMissingHeaderIsAnonymous(t *testing.T) {
	r := newTestRouter(newTestCodec(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":false`)
}

func TestRequireUserRejectsAnonymous(t *testing.T) {
	r := newTestRouter(newTestCodec(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestAuthenticateValidAccessToken(t *testing.T) {
	codec := newTestCodec(t)
	r := newTestRouter(codec)

	issued, err := codec.Issue("user-1", models.TokenTypeAccess)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Value)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-1"`)
}

func TestAuthenticateRejectsRefreshTokenAsBearer(t *testing.T) {
	codec := newTestCodec(t)
	r := newTestRouter(codec)

	issued, err := codec.Issue("user-1", models.TokenTypeRefresh)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Value)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN_TYPE")
}

func TestAuthenticateRejectsMalformedHeader(t *testing.T) {
	r := newTestRouter(newTestCodec(t))

	for _, header := range []string{"Bearer", "Basic abc", "Bearer "} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/public", nil)
		req.Header.Set("Authorization", header)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}

func TestAuthenticateRejectsGarbageToken(t *testing.T) {
	r := newTestRouter(newTestCodec(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}

func TestAuthenticateRejectsRevokedToken(t *testing.T) {
	revoked := map[string]bool{}
	validator := func(ctx context.Context, claims *models.TokenClaims) error {
		if revoked[claims.ID] {
			return assert.AnError
		}
		return nil
	}
	codec := newTestCodec(t, validator)
	r := newTestRouter(codec)

	issued, err := codec.Issue("user-1", models.TokenTypeAccess)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Value)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	revoked[issued.Claims.ID] = true

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Value)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
