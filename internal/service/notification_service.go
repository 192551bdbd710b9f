package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
)

// NotificationService turns domain events into operator notifications:
// a structured log line for every event and a Slack message for the ones
// a human should act on.
type NotificationService struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
	post   func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// NewNotificationService creates the service.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		logger: logger,
		cfg:    cfg,
		post:   slack.PostWebhookContext,
	}
}

// Notify handles one event.
func (n *NotificationService) Notify(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload),
	)
	n.sendEmailNotificationStub(event)

	msg := slackMessageFor(event)
	if msg == nil || strings.TrimSpace(n.cfg.SlackWebhookURL) == "" {
		return nil
	}
	if err := n.post(ctx, n.cfg.SlackWebhookURL, msg); err != nil {
		return fmt.Errorf("slack webhook %s: %w", event.Type, err)
	}
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || event.Type != events.EventTicketAssigned {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

// slackMessageFor renders assignments, routing failures and urgent new
// tickets. Other events produce no message.
func slackMessageFor(event events.Event) *slack.WebhookMessage {
	switch payload := event.Payload.(type) {
	case events.TicketAssignedPayload:
		return &slack.WebhookMessage{
			Text: fmt.Sprintf("Ticket %s assigned to %s", payload.TicketNumber, payload.AgentName),
			Attachments: []slack.Attachment{{
				Color: priorityColor(payload.Priority),
				Title: payload.Subject,
				Fields: []slack.AttachmentField{
					{Title: "Priority", Value: string(payload.Priority), Short: true},
					{Title: "Score", Value: fmt.Sprintf("%.2f", payload.Score), Short: true},
				},
				Footer: payload.Rationale,
			}},
		}
	case events.TicketRoutingFailedPayload:
		return &slack.WebhookMessage{
			Text: fmt.Sprintf(":warning: Ticket %s (%s) could not be routed: %s",
				payload.TicketNumber, payload.Priority, payload.Reason),
		}
	case events.TicketCreatedPayload:
		if payload.Priority != domain.TicketPriorityUrgent {
			return nil
		}
		return &slack.WebhookMessage{
			Text: fmt.Sprintf(":rotating_light: Urgent ticket %s: %s", payload.TicketNumber, payload.Subject),
		}
	}
	return nil
}

func priorityColor(p domain.TicketPriority) string {
	switch p {
	case domain.TicketPriorityUrgent:
		return "danger"
	case domain.TicketPriorityHigh:
		return "warning"
	default:
		return "good"
	}
}
