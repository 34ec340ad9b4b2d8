// Package notifier delivers outbound email off the request path. Messages go
// through a bounded queue consumed by a single worker; enqueue never blocks
// and delivery failures are logged, never surfaced to callers.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a single message. Implementations are external transports;
// LogSender is the default when none is configured.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them. Used in
// development and as the fallback transport.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-backed sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "outbound email",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}

// Dispatcher owns the queue and the worker goroutine.
type Dispatcher struct {
	sender Sender
	queue  chan Message
	logger *slog.Logger
	done   chan struct{}
}

// NewDispatcher creates a dispatcher with the given queue capacity.
func NewDispatcher(sender Sender, queueSize int, logger *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		sender: sender,
		queue:  make(chan Message, queueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Enqueue hands a message to the worker without blocking. When the queue is
// full the message is dropped with a warning; delivery is best-effort.
func (d *Dispatcher) Enqueue(msg Message) {
	select {
	case d.queue <- msg:
	default:
		d.logger.Warn("notification queue full, dropping message",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
		)
	}
}

// Run consumes the queue until ctx is canceled, then drains what is already
// queued and exits. Call Wait to block until the worker has stopped.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case msg := <-d.queue:
			d.deliver(msg)
		}
	}
}

// Wait blocks until the worker goroutine has exited.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) drain() {
	for {
		select {
		case msg := <-d.queue:
			d.deliver(msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	if err := d.sender.Send(context.Background(), msg); err != nil {
		d.logger.Error("failed to send notification",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
	}
}

// VerificationMessage builds the confirm-your-email message. Email and token
// are query-escaped into the confirmation URL.
func VerificationMessage(baseURL, email, token string) Message {
	link := fmt.Sprintf("%s/protected-resource/authen/ConfirmEmail?email=%s&token=%s",
		baseURL, url.QueryEscape(email), url.QueryEscape(token))
	return Message{
		To:      email,
		Subject: "Confirm your email address",
		Body:    "Follow this link to confirm your email address: " + link,
	}
}

// OTPMessage builds the one-time-code message.
func OTPMessage(email string, code int) Message {
	return Message{
		To:      email,
		Subject: "Your verification code",
		Body:    fmt.Sprintf("Your verification code is %d. It expires in 10 minutes.", code),
	}
}

// PasswordChangedMessage builds the notice sent after a password change.
func PasswordChangedMessage(email string) Message {
	return Message{
		To:      email,
		Subject: "Your password was changed",
		Body:    "The password for your account was just changed. If this was not you, reset your password immediately.",
	}
}
