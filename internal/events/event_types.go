package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/triage-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketRoutingFailed EventType = "ticket_routing_failed"
	EventTicketResponseAdded EventType = "ticket_response_added"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.ActorType `json:"type"`
	ID   *string          `json:"id,omitempty"`
}

// SystemActor is the actor for automatic routing and sweeps.
var SystemActor = Actor{Type: domain.ActorTypeSystem}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps a fresh id onto an event.
func NewEvent(eventType EventType, ticketID string, actor Actor, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: at,
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	Subject      string                `json:"subject"`
	Category     domain.Category       `json:"category"`
	Sentiment    domain.Sentiment      `json:"sentiment"`
	UrgencyScore float64               `json:"urgency_score"`
	Priority     domain.TicketPriority `json:"priority"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TicketNumber    string                `json:"ticket_number"`
	Subject         string                `json:"subject"`
	Priority        domain.TicketPriority `json:"priority"`
	PreviousAgentID *string               `json:"previous_agent_id,omitempty"`
	AgentID         string                `json:"agent_id"`
	AgentName       string                `json:"agent_name"`
	Score           float64               `json:"score"`
	Rationale       string                `json:"rationale,omitempty"`
}

// TicketRoutingFailedPayload payload.
type TicketRoutingFailedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	Priority     domain.TicketPriority `json:"priority"`
	Reason       string                `json:"reason"`
}

// TicketResponseAddedPayload payload.
type TicketResponseAddedPayload struct {
	ResponseID      string `json:"response_id"`
	IsAgentResponse bool   `json:"is_agent_response"`
	IsAISuggested   bool   `json:"is_ai_suggested"`
	BodyPreview     string `json:"body_preview"`
}
