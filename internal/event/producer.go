package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/neosign/identity/pkg/kafka"

	"github.com/neosign/identity/internal/domain"
)

// Kafka topics for identity domain events.
const (
	TopicUserClaimed         = "identity.user.claimed"
	TopicUserRegistered      = "identity.user.registered"
	TopicOTPIssued           = "identity.otp.issued"
	TopicUserPasswordChanged = "identity.user.password_changed"
)

const (
	AggregateTypeUser = "user"
	AggregateTypeOTP  = "otp"
)

// SourceIdentityService identifies events originating from this service.
const SourceIdentityService = "identity-service"

// UserClaimedData is the payload for a user.claimed event.
type UserClaimedData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Roles     []string `json:"roles"`
}

// OTPIssuedData is the payload for an otp.issued event. The code itself is
// never published.
type OTPIssuedData struct {
	UserID  string `json:"user_id"`
	Purpose string `json:"purpose"`
}

// UserPasswordChangedData is the payload for a user.password_changed event.
type UserPasswordChangedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Producer publishes identity domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the identity service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserClaimed publishes a user.claimed event.
func (p *Producer) PublishUserClaimed(ctx context.Context, user *domain.User) error {
	data := UserClaimedData{
		ID:    user.ID,
		Email: user.Email,
	}
	return p.publish(ctx, TopicUserClaimed, user.ID, AggregateTypeUser, data)
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Roles:     user.Roles,
	}
	return p.publish(ctx, TopicUserRegistered, user.ID, AggregateTypeUser, data)
}

// PublishOTPIssued publishes an otp.issued event.
func (p *Producer) PublishOTPIssued(ctx context.Context, otp *domain.OTP) error {
	data := OTPIssuedData{
		UserID:  otp.UserID,
		Purpose: otp.Purpose,
	}
	return p.publish(ctx, TopicOTPIssued, otp.UserID, AggregateTypeOTP, data)
}

// PublishUserPasswordChanged publishes a user.password_changed event.
func (p *Producer) PublishUserPasswordChanged(ctx context.Context, userID, email string) error {
	data := UserPasswordChangedData{
		UserID: userID,
		Email:  email,
	}
	return p.publish(ctx, TopicUserPasswordChanged, userID, AggregateTypeUser, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceIdentityService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
