package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType is the closed set of purposes a signed token can carry.
// Unknown values are rejected while the token is being parsed, not
// downstream.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// UnmarshalJSON enforces the closed set at parse time.
func (t *TokenType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch TokenType(raw) {
	case TokenTypeAccess, TokenTypeRefresh:
		*t = TokenType(raw)
		return nil
	}
	return fmt.Errorf("unknown token type %q", raw)
}

// TokenClaims is the fixed, typed claim set embedded in every signed
// token. Type is an explicit claim; it is never inferred.
type TokenClaims struct {
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *TokenClaims) UserID() string {
	return c.Subject
}

// ExpiresIn reports the token lifespan in whole seconds, computed from
// the claims themselves (exp - iat) so the value is constant for a
// given token no matter when it is asked.
func (c *TokenClaims) ExpiresIn() int64 {
	if c.ExpiresAt == nil || c.IssuedAt == nil {
		return 0
	}
	return c.ExpiresAt.Unix() - c.IssuedAt.Unix()
}

// IssuedToken pairs a signed token string with its decoded claims.
type IssuedToken struct {
	Value  string
	Claims *TokenClaims
}

// RevokedToken maps a token id to its revocation time and the token's
// original expiry, after which the record is swept.
type RevokedToken struct {
	JTI       string    `db:"jti" json:"jti"`
	RevokedAt time.Time `db:"revoked_at" json:"revoked_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}
