package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dotask-io/dotask-api/internal/models"
	"github.com/dotask-io/dotask-api/internal/service"
	appErrors "github.com/dotask-io/dotask-api/pkg/errors"
	"github.com/dotask-io/dotask-api/pkg/response"
)

// ContextUserKey is the gin context key under which the authenticated
// claims are stored.
const ContextUserKey = "currentUser"

// Authenticate decodes a bearer token when one is present. Requests
// without an Authorization header pass through anonymously; route
// groups that need an identity add RequireUser. A header that is
// present but malformed, invalid or carrying a non-access token is
// rejected here.
func Authenticate(codec *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrInvalidToken, ""))
			c.Abort()
			return
		}

		claims, err := codec.Decode(c.Request.Context(), parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		if claims.Type != models.TokenTypeAccess {
			response.Error(c, appErrors.Clone(appErrors.ErrInvalidTokenType, "access token required"))
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// RequireUser rejects requests that reached this point without an
// authenticated identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserKey); !exists {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// ClaimsFromContext returns the authenticated claims, if any.
func ClaimsFromContext(c *gin.Context) (*models.TokenClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.TokenClaims)
	return claims, ok
}
