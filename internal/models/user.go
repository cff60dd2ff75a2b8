package models

import "time"

// User represents an account stored in the users table. The action
// token columns hold single-use secrets for email verification and
// password reset; both are cleared once consumed.
type User struct {
	ID                      string     `db:"id" json:"id"`
	Email                   string     `db:"email" json:"email"`
	PasswordHash            string     `db:"password_hash" json:"-"`
	Name                    string     `db:"name" json:"name"`
	EmailVerified           bool       `db:"email_verified" json:"email_verified"`
	EmailVerificationToken  *string    `db:"email_verification_token" json:"-"`
	EmailVerificationExpiry *time.Time `db:"email_verification_expires_at" json:"-"`
	PasswordResetToken      *string    `db:"password_reset_token" json:"-"`
	PasswordResetExpiry     *time.Time `db:"password_reset_expires_at" json:"-"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
