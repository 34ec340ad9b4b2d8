package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/neosign/identity/pkg/errors"

	"github.com/neosign/identity/internal/domain"
	"github.com/neosign/identity/internal/notifier"
	"github.com/neosign/identity/internal/repository"
)

// OTPService issues and verifies single-use numeric codes.
type OTPService struct {
	otps     repository.OTPRepository
	users    repository.UserRepository
	producer EventPublisher
	notify   Notifier
	logger   *slog.Logger
}

// NewOTPService creates a new OTP service.
func NewOTPService(
	otps repository.OTPRepository,
	users repository.UserRepository,
	producer EventPublisher,
	notify Notifier,
	logger *slog.Logger,
) *OTPService {
	return &OTPService{
		otps:     otps,
		users:    users,
		producer: producer,
		notify:   notify,
		logger:   logger,
	}
}

// GenerateForUser issues a registration code for the given user ID. An
// unknown user is logged and swallowed: code generation is fire-and-forget
// and never tells the caller whether the user exists.
func (s *OTPService) GenerateForUser(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.InfoContext(ctx, "otp requested for unknown user",
				slog.String("user_id", userID),
			)
			return nil
		}
		return fmt.Errorf("look up user: %w", err)
	}
	return s.issue(ctx, user, domain.OTPPurposeRegistration)
}

// GenerateForEmail issues a password-reset code for the given email. Unknown
// addresses are swallowed the same way as unknown user IDs.
func (s *OTPService) GenerateForEmail(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.InfoContext(ctx, "otp requested for unknown email",
				slog.String("email", email),
			)
			return nil
		}
		return fmt.Errorf("look up user: %w", err)
	}
	return s.issue(ctx, user, domain.OTPPurposePasswordReset)
}

// issue stores a fresh code and mails it. Previously issued codes stay
// valid until they expire or are consumed.
func (s *OTPService) issue(ctx context.Context, user *domain.User, purpose string) error {
	now := time.Now().UTC()
	otp := &domain.OTP{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Code:      rand.IntN(domain.OTPCodeMax-domain.OTPCodeMin+1) + domain.OTPCodeMin,
		Purpose:   purpose,
		ExpiresAt: now.Add(domain.OTPValidity),
		CreatedAt: now,
	}

	if err := s.otps.Create(ctx, otp); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	s.notify.Enqueue(notifier.OTPMessage(user.Email, otp.Code))

	if err := s.producer.PublishOTPIssued(ctx, otp); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish otp.issued event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "otp issued",
		slog.String("user_id", user.ID),
		slog.String("purpose", purpose),
	)
	return nil
}

// VerifyForUser consumes a code for the given user ID. Expired or already
// consumed codes are indistinguishable from codes that never existed.
func (s *OTPService) VerifyForUser(ctx context.Context, userID string, code int) (*domain.OTP, error) {
	otp, err := s.otps.Find(ctx, userID, code)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("code not found")
		}
		return nil, fmt.Errorf("find otp: %w", err)
	}

	if !otp.Usable(time.Now().UTC()) {
		return nil, apperrors.NotFound("code not found")
	}

	if err := s.otps.MarkSeen(ctx, otp.ID); err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	otp.UserSeen = true

	s.logger.InfoContext(ctx, "otp verified",
		slog.String("user_id", userID),
		slog.String("purpose", otp.Purpose),
	)
	return otp, nil
}

// VerifyForEmail resolves the email to a user and consumes the code.
func (s *OTPService) VerifyForEmail(ctx context.Context, email string, code int) (*domain.OTP, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("code not found")
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}
	return s.VerifyForUser(ctx, user.ID, code)
}
