package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
)

func TestNotifyPostsAssignmentsToSlack(t *testing.T) {
	received := make(chan slack.WebhookMessage, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg slack.WebhookMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err == nil {
			received <- msg
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewNotificationService(zap.NewNop(), config.NotificationConfig{SlackWebhookURL: server.URL})
	event := events.NewEvent(events.EventTicketAssigned, "t1", events.SystemActor, time.Now(), events.TicketAssignedPayload{
		TicketNumber: "TKT-20260601-ABCDEF",
		Subject:      "Refund",
		Priority:     domain.TicketPriorityHigh,
		AgentName:    "Robin",
		Score:        72.5,
		Rationale:    "expertise 40.00",
	})
	require.NoError(t, svc.Notify(context.Background(), event))

	msg := <-received
	assert.Equal(t, "Ticket TKT-20260601-ABCDEF assigned to Robin", msg.Text)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "warning", msg.Attachments[0].Color)
}

func TestNotifySkipsQuietEvents(t *testing.T) {
	calls := 0
	svc := NewNotificationService(zap.NewNop(), config.NotificationConfig{SlackWebhookURL: "http://slack.invalid"})
	svc.post = func(ctx context.Context, url string, msg *slack.WebhookMessage) error {
		calls++
		return nil
	}
	ctx := context.Background()

	low := events.NewEvent(events.EventTicketCreated, "t1", events.SystemActor, time.Now(),
		events.TicketCreatedPayload{Priority: domain.TicketPriorityLow})
	require.NoError(t, svc.Notify(ctx, low))
	status := events.NewEvent(events.EventTicketStatusChanged, "t1", events.SystemActor, time.Now(),
		events.TicketStatusChangedPayload{OldStatus: domain.TicketStatusOpen, NewStatus: domain.TicketStatusClosed})
	require.NoError(t, svc.Notify(ctx, status))
	assert.Equal(t, 0, calls)

	urgent := events.NewEvent(events.EventTicketCreated, "t2", events.SystemActor, time.Now(),
		events.TicketCreatedPayload{TicketNumber: "TKT-1", Priority: domain.TicketPriorityUrgent})
	require.NoError(t, svc.Notify(ctx, urgent))
	assert.Equal(t, 1, calls)
}

func TestNotifyWithoutWebhookIsNoop(t *testing.T) {
	svc := NewNotificationService(zap.NewNop(), config.NotificationConfig{})
	svc.post = func(ctx context.Context, url string, msg *slack.WebhookMessage) error {
		t.Fatal("unexpected webhook post")
		return nil
	}
	event := events.NewEvent(events.EventTicketRoutingFailed, "t1", events.SystemActor, time.Now(),
		events.TicketRoutingFailedPayload{TicketNumber: "TKT-1", Reason: "no eligible agent"})
	assert.NoError(t, svc.Notify(context.Background(), event))
}

func TestNotifyWrapsWebhookError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewNotificationService(zap.NewNop(), config.NotificationConfig{SlackWebhookURL: "http://slack.invalid"})
	svc.post = func(ctx context.Context, url string, msg *slack.WebhookMessage) error { return boom }

	event := events.NewEvent(events.EventTicketRoutingFailed, "t1", events.SystemActor, time.Now(),
		events.TicketRoutingFailedPayload{TicketNumber: "TKT-1", Reason: "no eligible agent"})
	err := svc.Notify(context.Background(), event)
	assert.ErrorIs(t, err, boom)
}
