package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/neosign/identity/pkg/errors"

	"github.com/neosign/identity/internal/auth"
	"github.com/neosign/identity/internal/domain"
	"github.com/neosign/identity/internal/notifier"
	"github.com/neosign/identity/internal/repository"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length accepted.
const minPasswordLength = 8

// confirmTokenTTL bounds how long an emailed confirmation link stays valid.
const confirmTokenTTL = 48 * time.Hour

// EventPublisher is the slice of the event producer the services use.
type EventPublisher interface {
	PublishUserClaimed(ctx context.Context, user *domain.User) error
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishOTPIssued(ctx context.Context, otp *domain.OTP) error
	PublishUserPasswordChanged(ctx context.Context, userID, email string) error
}

// Notifier enqueues outbound email without blocking.
type Notifier interface {
	Enqueue(msg notifier.Message)
}

// AccountService implements the account lifecycle: claim, confirm, register,
// login, and the password and profile operations.
type AccountService struct {
	users    repository.UserRepository
	issuer   *auth.TokenIssuer
	producer EventPublisher
	notify   Notifier
	baseURL  string
	logger   *slog.Logger
}

// NewAccountService creates a new account service. baseURL is the public URL
// confirmation links point at.
func NewAccountService(
	users repository.UserRepository,
	issuer *auth.TokenIssuer,
	producer EventPublisher,
	notify Notifier,
	baseURL string,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:    users,
		issuer:   issuer,
		producer: producer,
		notify:   notify,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// ProfileInput holds the registration profile fields.
type ProfileInput struct {
	FirstName string
	LastName  string
	Phone     string
}

// UpdateProfileInput holds optional profile fields for an update; nil means
// leave unchanged.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

// ClaimEmail reserves an email address and emails a confirmation link.
// Claiming an address that is already reserved but unconfirmed re-issues the
// token; the response does not distinguish the two cases. Only the most
// recently issued token can confirm.
func (s *AccountService) ClaimEmail(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.Validation("email is required")
	}

	token, tokenHash, err := newConfirmToken()
	if err != nil {
		return fmt.Errorf("generate confirmation token: %w", err)
	}
	expires := time.Now().UTC().Add(confirmTokenTTL)

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if user.IsRegistered() {
			return apperrors.Conflict("email already registered")
		}
		user.ConfirmTokenHash = tokenHash
		user.ConfirmTokenExpiresAt = &expires
		if err := s.users.Update(ctx, user); err != nil {
			return fmt.Errorf("reissue confirmation token: %w", err)
		}
	case errors.Is(err, apperrors.ErrNotFound):
		now := time.Now().UTC()
		user = &domain.User{
			ID:                    uuid.New().String(),
			Email:                 email,
			Status:                domain.StatusTemporaryCreated,
			Roles:                 []string{domain.RoleUser},
			ConfirmTokenHash:      tokenHash,
			ConfirmTokenExpiresAt: &expires,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
	default:
		return fmt.Errorf("look up user: %w", err)
	}

	s.notify.Enqueue(notifier.VerificationMessage(s.baseURL, email, token))

	if err := s.producer.PublishUserClaimed(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.claimed event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "email claimed",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)
	return nil
}

// ConfirmEmail validates a confirmation token and marks the address
// confirmed. The comparison against the stored hash is constant-time.
func (s *AccountService) ConfirmEmail(ctx context.Context, email, token string) error {
	if email == "" || token == "" {
		return apperrors.Validation("email and token are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user not found")
		}
		return fmt.Errorf("look up user: %w", err)
	}

	if user.ConfirmTokenHash == "" || user.ConfirmTokenExpiresAt == nil ||
		time.Now().UTC().After(*user.ConfirmTokenExpiresAt) {
		return apperrors.Validation("invalid or expired confirmation token")
	}

	tokenHash := hashConfirmToken(token)
	if subtle.ConstantTimeCompare([]byte(tokenHash), []byte(user.ConfirmTokenHash)) != 1 {
		return apperrors.Validation("invalid or expired confirmation token")
	}

	user.EmailConfirmed = true
	user.ConfirmTokenHash = ""
	user.ConfirmTokenExpiresAt = nil
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}

	s.logger.InfoContext(ctx, "email confirmed",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)
	return nil
}

// CompleteRegistration sets the profile and password on a confirmed claim and
// promotes the account to Created. Profile, password hash, and status are
// written in a single update so the transition commits atomically.
func (s *AccountService) CompleteRegistration(ctx context.Context, email string, profile ProfileInput, password string) (*domain.User, error) {
	if profile.FirstName == "" {
		return nil, apperrors.Validation("first name is required")
	}
	if profile.LastName == "" {
		return nil, apperrors.Validation("last name is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if user.IsRegistered() {
		return nil, apperrors.Conflict("registration already completed")
	}
	if !user.EmailConfirmed {
		return nil, apperrors.Precondition("email not confirmed")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user.FirstName = profile.FirstName
	user.LastName = profile.LastName
	user.Phone = profile.Phone
	user.PasswordHash = string(hashed)
	user.Status = domain.StatusCreated
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("complete registration: %w", err)
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "registration completed",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// Login verifies credentials and returns a signed access token. An unknown
// email reports not-found; an unconfirmed email is a failed precondition; a
// wrong password is an authentication failure. Confirmation is the only
// lifecycle gate: a confirmed account that never finished registration still
// goes through the credential check and succeeds or fails on its current
// password state.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	if email == "" || password == "" {
		return "", nil, apperrors.Validation("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", nil, apperrors.NotFound("user not found")
		}
		return "", nil, fmt.Errorf("look up user: %w", err)
	}

	if !user.EmailConfirmed {
		return "", nil, apperrors.Precondition("email not confirmed")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperrors.AuthFailed("incorrect password")
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		s.logger.ErrorContext(ctx, "token issuance failed",
			slog.String("op", "AccountService.Login"),
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return "", nil, apperrors.Operation("could not issue token")
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return token, user, nil
}

// ResetPassword replaces the password on a registered account without
// checking the old one. The forgot-password flow gates this behind OTP
// verification at the HTTP layer.
func (s *AccountService) ResetPassword(ctx context.Context, email, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperrors.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user not found")
		}
		return fmt.Errorf("look up user: %w", err)
	}

	if !user.IsRegistered() {
		return apperrors.Precondition("registration not completed")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = string(hashed)
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	s.notify.Enqueue(notifier.PasswordChangedMessage(user.Email))

	if err := s.producer.PublishUserPasswordChanged(ctx, user.ID, user.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_changed event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset",
		slog.String("user_id", user.ID),
	)
	return nil
}

// ChangePassword replaces the password for an authenticated user after
// verifying the current one.
func (s *AccountService) ChangePassword(ctx context.Context, email, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return apperrors.Validation("current password is required")
	}
	if len(newPassword) < minPasswordLength {
		return apperrors.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if currentPassword == newPassword {
		return apperrors.Validation("new password must be different from current password")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user not found")
		}
		return fmt.Errorf("look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperrors.AuthFailed("incorrect password")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = string(hashed)
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	s.notify.Enqueue(notifier.PasswordChangedMessage(user.Email))

	if err := s.producer.PublishUserPasswordChanged(ctx, user.ID, user.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_changed event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", user.ID),
	)
	return nil
}

// GetUser returns the profile for the given email.
func (s *AccountService) GetUser(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateProfile updates the mutable profile fields of the given account.
func (s *AccountService) UpdateProfile(ctx context.Context, email string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if input.FirstName != nil {
		if *input.FirstName == "" {
			return nil, apperrors.Validation("first name must not be empty")
		}
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		if *input.LastName == "" {
			return nil, apperrors.Validation("last name must not be empty")
		}
		user.LastName = *input.LastName
	}
	if input.Phone != nil {
		user.Phone = *input.Phone
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.logger.InfoContext(ctx, "profile updated",
		slog.String("user_id", user.ID),
	)
	return user, nil
}

// newConfirmToken generates a 32-byte random confirmation token and returns
// it with its SHA-256 hex digest. Only the digest is stored.
func newConfirmToken() (token, tokenHash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(buf)
	return token, hashConfirmToken(token), nil
}

// hashConfirmToken returns the SHA-256 hex digest of the given token string.
func hashConfirmToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
