package models

// CredentialsRequest holds the identifier/secret pair exchanged for a
// token pair.
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse returns an issued token pair.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// RefreshTokenRequest exchanges a refresh token for a new token pair.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// RevokeTokenRequest marks a token unusable before its natural expiry.
type RevokeTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// RegisterUserRequest creates an account.
type RegisterUserRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// UpdateUserRequest updates the caller's profile. A changed email must
// be re-verified.
type UpdateUserRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=100"`
	Email *string `json:"email" validate:"omitempty,email"`
}

// ActionEmailAction enumerates the account emails a client can request.
type ActionEmailAction string

const (
	ActionVerifyEmail   ActionEmailAction = "VERIFY_EMAIL"
	ActionResetPassword ActionEmailAction = "RESET_PASSWORD"
)

// SendActionEmailRequest triggers a verification or reset email. URL is
// the client page the emailed link should point at.
type SendActionEmailRequest struct {
	Email  string            `json:"email" validate:"required,email"`
	URL    string            `json:"url" validate:"required,url"`
	Action ActionEmailAction `json:"action" validate:"required,oneof=VERIFY_EMAIL RESET_PASSWORD"`
}

// VerifyEmailRequest consumes an email verification token.
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResetPasswordRequest consumes a password reset token.
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}
