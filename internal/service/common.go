package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/triage"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

func (c Clock) orDefault() Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// AgentActor builds an event actor for an agent acting through the API.
func AgentActor(agentID string) events.Actor {
	return events.Actor{Type: domain.ActorTypeAgent, ID: &agentID}
}

// CustomerActor builds an event actor for a customer. An empty id yields an
// anonymous customer.
func CustomerActor(customerID string) events.Actor {
	if customerID == "" {
		return events.Actor{Type: domain.ActorTypeCustomer}
	}
	return events.Actor{Type: domain.ActorTypeCustomer, ID: &customerID}
}

// mapError translates repository and engine errors into DomainErrors.
func mapError(err error, resource string, details map[string]any) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", details)
	case errors.Is(err, triage.ErrNoEligibleAgent):
		return apperrors.NewConflictCode("NO_ELIGIBLE_AGENT", "no eligible agent available", details, err)
	case errors.Is(err, triage.ErrInvalidTransition):
		return apperrors.NewConflictCode("INVALID_TRANSITION", err.Error(), details, err)
	case errors.Is(err, triage.ErrTicketNotRoutable):
		return apperrors.NewConflictCode("TICKET_NOT_ROUTABLE", err.Error(), details, err)
	case errors.Is(err, triage.ErrTicketAlreadyAssigned):
		return apperrors.NewConflictCode("TICKET_ALREADY_ASSIGNED", err.Error(), details, err)
	case errors.Is(err, triage.ErrAgentUnavailable), errors.Is(err, triage.ErrAgentAtCapacity):
		return apperrors.NewConflictCode("AGENT_UNAVAILABLE", err.Error(), details, err)
	case errors.Is(err, triage.ErrUnknownStatus):
		return apperrors.NewValidationError(err.Error(), details)
	}
	return apperrors.MapError(err)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err),
		)
	}
}

// historyRecorder appends audit entries.
type historyRecorder struct {
	repo repository.TicketHistoryRepository
	now  Clock
}

func (h historyRecorder) record(ctx context.Context, ticketID string, actor events.Actor, change domain.TicketChangeType, oldValue, newValue map[string]any) error {
	if h.repo == nil {
		return nil
	}
	return h.repo.Create(ctx, &domain.TicketHistory{
		ID:            uuid.NewString(),
		TicketID:      ticketID,
		ChangedByType: actor.Type,
		ChangedByID:   actor.ID,
		ChangeType:    change,
		OldValue:      oldValue,
		NewValue:      newValue,
		CreatedAt:     h.now(),
	})
}

func (h historyRecorder) statusChange(ctx context.Context, ticketID string, actor events.Actor, from, to domain.TicketStatus) error {
	return h.record(ctx, ticketID, actor, domain.ChangeTypeStatus,
		map[string]any{"status": from},
		map[string]any{"status": to},
	)
}

func (h historyRecorder) assigneeChange(ctx context.Context, ticketID string, actor events.Actor, from, to *string) error {
	return h.record(ctx, ticketID, actor, domain.ChangeTypeAssignee,
		map[string]any{"assigned_agent_id": from},
		map[string]any{"assigned_agent_id": to},
	)
}

func stringPreview(body string, limit int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit])
}

func sameAgent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
