package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dotask-io/dotask-api/internal/models"
	"github.com/dotask-io/dotask-api/pkg/config"
	appErrors "github.com/dotask-io/dotask-api/pkg/errors"
	"github.com/dotask-io/dotask-api/pkg/mailer"
)

const verifyEmailTemplate = `<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Verify your email</h2>
  <p>Hi {{name}},</p>
  <p>Confirm your email address by clicking the link below. The link expires in {{expiresIn}}.</p>
  <p><a href="{{url}}?token={{token}}">Verify email</a></p>
  <p>If you did not create this account, you can ignore this message.</p>
</body>
</html>`

const resetPasswordTemplate = `<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Reset your password</h2>
  <p>Hi {{name}},</p>
  <p>We received a request to reset your password. The link expires in {{expiresIn}}.</p>
  <p><a href="{{url}}?token={{token}}">Reset password</a></p>
  <p>If you did not request this, you can ignore this message.</p>
</body>
</html>`

// UserStore is the persistence surface the user service needs.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmailVerificationToken(ctx context.Context, token string) (*models.User, error)
	FindByPasswordResetToken(ctx context.Context, token string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// EmailSender sends a rendered message; delivery may be asynchronous.
type EmailSender interface {
	Send(to, subject, htmlBody string) error
}

// UserService manages accounts, email verification and password reset.
type UserService struct {
	users     UserStore
	emails    EmailSender
	tokenCfg  config.TokenConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates a new instance of UserService.
func NewUserService(users UserStore, emails EmailSender, tokenCfg config.TokenConfig, v *validator.Validate, logger *zap.Logger) *UserService {
	if v == nil {
		v = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:     users,
		emails:    emails,
		tokenCfg:  tokenCfg,
		validator: v,
		logger:    logger,
	}
}

// Register creates an account. The account starts unverified and cannot
// obtain tokens until the email is confirmed.
func (s *UserService) Register(ctx context.Context, req models.RegisterUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Me returns the caller's account.
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// UpdateMe applies profile changes. Changing the email clears the
// verified flag; the new address must be verified before the next
// token request succeeds.
func (s *UserService) UpdateMe(ctx context.Context, userID string, req models.UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil && *req.Email != user.Email {
		exists, err := s.users.ExistsByEmail(ctx, *req.Email)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
		}
		user.Email = *req.Email
		user.EmailVerified = false
		user.EmailVerificationToken = nil
		user.EmailVerificationExpiry = nil
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return user, nil
}

// DeleteMe removes the caller's account and all owned data.
func (s *UserService) DeleteMe(ctx context.Context, userID string) error {
	if _, err := s.Me(ctx, userID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	s.logger.Info("user deleted", zap.String("user_id", userID))
	return nil
}

// SendActionEmail issues a single-use token and mails a link for the
// requested action. Requesting verification for an already verified
// account is a conflict.
func (s *UserService) SendActionEmail(ctx context.Context, req models.SendActionEmailRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid action email payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	token, err := randomToken()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate token")
	}

	var subject, template string
	var lifespan time.Duration

	switch req.Action {
	case models.ActionVerifyEmail:
		if user.EmailVerified {
			return appErrors.Clone(appErrors.ErrConflict, "email already verified")
		}
		lifespan = s.tokenCfg.EmailVerificationLifespan
		expiry := time.Now().UTC().Add(lifespan)
		user.EmailVerificationToken = &token
		user.EmailVerificationExpiry = &expiry
		subject = "Verify your email"
		template = verifyEmailTemplate
	case models.ActionResetPassword:
		lifespan = s.tokenCfg.PasswordResetLifespan
		expiry := time.Now().UTC().Add(lifespan)
		user.PasswordResetToken = &token
		user.PasswordResetExpiry = &expiry
		subject = "Reset your password"
		template = resetPasswordTemplate
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown action")
	}

	if err := s.users.Update(ctx, user); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store action token")
	}

	body := mailer.RenderTemplate(template, map[string]string{
		"name":      user.Name,
		"url":       req.URL,
		"token":     token,
		"expiresIn": formatLifespan(lifespan),
	})

	if err := s.emails.Send(user.Email, subject, body); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue email")
	}

	s.logger.Info("action email queued", zap.String("user_id", user.ID), zap.String("action", string(req.Action)))
	return nil
}

// VerifyEmail consumes a verification token and marks the account
// verified. Unknown tokens are a 404; expired ones a 401.
func (s *UserService) VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}

	user, err := s.users.FindByEmailVerificationToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "token not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if user.EmailVerificationExpiry == nil || user.EmailVerificationExpiry.Before(time.Now().UTC()) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "token expired")
	}

	user.EmailVerified = true
	user.EmailVerificationToken = nil
	user.EmailVerificationExpiry = nil

	if err := s.users.Update(ctx, user); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify email")
	}

	s.logger.Info("email verified", zap.String("user_id", user.ID))
	return nil
}

// ResetPassword consumes a reset token and replaces the password.
func (s *UserService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}

	user, err := s.users.FindByPasswordResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "token not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if user.PasswordResetExpiry == nil || user.PasswordResetExpiry.Before(time.Now().UTC()) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "token expired")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user.PasswordHash = string(hash)
	user.PasswordResetToken = nil
	user.PasswordResetExpiry = nil

	if err := s.users.Update(ctx, user); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset password")
	}

	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func formatLifespan(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	case d >= time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	default:
		minutes := int(d.Minutes())
		if minutes <= 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
}
