package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/campuslink/apiserver/internal/mq"
	"github.com/campuslink/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
}

func (b *recordingBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.channel = channel
	b.data = data
	b.attrs = attrs
	return "msg-1", nil
}

func (b *recordingBackend) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	return nil
}

func (b *recordingBackend) Close() error { return nil }

func TestPublisherAccountRegistered(t *testing.T) {
	backend := &recordingBackend{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := NewPublisher(mq.New(backend), "", logger)

	publisher.AccountRegistered(context.Background(), types.Account{
		Email:     "member@campuslink.io",
		StudentID: "20260001",
	})

	assert.Equal(t, "account-events", backend.channel)
	assert.Equal(t, EventAccountRegistered, backend.attrs["event"])

	var event Event
	require.NoError(t, json.Unmarshal(backend.data, &event))
	assert.Equal(t, EventAccountRegistered, event.Type)
	assert.Equal(t, "member@campuslink.io", event.Email)
	assert.Equal(t, "20260001", event.StudentID)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestPublisherPasswordChangedOmitsStudentID(t *testing.T) {
	backend := &recordingBackend{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := NewPublisher(mq.New(backend), "security-events", logger)

	publisher.PasswordChanged(context.Background(), "member@campuslink.io")

	assert.Equal(t, "security-events", backend.channel)

	var event Event
	require.NoError(t, json.Unmarshal(backend.data, &event))
	assert.Equal(t, EventPasswordChanged, event.Type)
	assert.Empty(t, event.StudentID)
}

func TestNilPublisherIsSafe(t *testing.T) {
	var publisher *Publisher
	publisher.AccountRegistered(context.Background(), types.Account{Email: "member@campuslink.io"})
	publisher.PasswordChanged(context.Background(), "member@campuslink.io")
}
