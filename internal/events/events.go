// Package events publishes account lifecycle notifications to the configured
// message broker so downstream consumers (mailer, analytics) can react to
// signups and credential changes.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/campuslink/apiserver/internal/mq"
	"github.com/campuslink/apiserver/types"
)

const (
	EventAccountRegistered = "account.registered"
	EventPasswordChanged   = "account.password_changed"
)

// Event is the wire shape of an account lifecycle notification.
type Event struct {
	Type       string    `json:"type"`
	Email      string    `json:"email"`
	StudentID  string    `json:"student_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits account events on a single broker channel. A nil Publisher
// is valid and publishes nothing; publish failures are logged, never returned,
// because event delivery must not fail the request that triggered it.
type Publisher struct {
	queue   *mq.MQ
	channel string
	logger  *slog.Logger
}

func NewPublisher(queue *mq.MQ, channel string, logger *slog.Logger) *Publisher {
	if channel == "" {
		channel = "account-events"
	}
	return &Publisher{
		queue:   queue,
		channel: channel,
		logger:  logger,
	}
}

// AccountRegistered announces a completed signup.
func (p *Publisher) AccountRegistered(ctx context.Context, account types.Account) {
	p.publish(ctx, Event{
		Type:       EventAccountRegistered,
		Email:      account.Email,
		StudentID:  account.StudentID,
		OccurredAt: time.Now(),
	})
}

// PasswordChanged announces a successful password change.
func (p *Publisher) PasswordChanged(ctx context.Context, email string) {
	p.publish(ctx, Event{
		Type:       EventPasswordChanged,
		Email:      email,
		OccurredAt: time.Now(),
	})
}

func (p *Publisher) publish(ctx context.Context, event Event) {
	if p == nil || p.queue == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to encode account event", "type", event.Type, "error", err)
		return
	}
	if _, err := p.queue.Publish(ctx, p.channel, data, map[string]string{"event": event.Type}); err != nil {
		p.logger.Warn("failed to publish account event", "type", event.Type, "email", event.Email, "error", err)
	}
}
