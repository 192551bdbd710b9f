package dto

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerID    string `json:"customer_id"`
	Subject       string `json:"subject"`
	Description   string `json:"description"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AgentID string `json:"agent_id"`
}

// CreateResponseRequest adds a message to a ticket thread.
type CreateResponseRequest struct {
	Message              string   `json:"message"`
	IsAgentResponse      *bool    `json:"is_agent_response"`
	AgentName            string   `json:"agent_name"`
	IsAISuggested        bool     `json:"is_ai_suggested"`
	SuggestionConfidence *float64 `json:"suggestion_confidence"`
}

// TicketResponse is the ticket representation returned by the API.
type TicketResponse struct {
	ID                 string                `json:"id"`
	TicketNumber       string                `json:"ticket_number"`
	CustomerName       string                `json:"customer_name"`
	CustomerEmail      string                `json:"customer_email"`
	CustomerID         string                `json:"customer_id,omitempty"`
	Subject            string                `json:"subject"`
	Description        string                `json:"description"`
	Category           domain.Category       `json:"category"`
	CategoryConfidence float64               `json:"category_confidence"`
	Sentiment          domain.Sentiment      `json:"sentiment"`
	SentimentScore     float64               `json:"sentiment_score"`
	UrgencyScore       float64               `json:"urgency_score"`
	Priority           domain.TicketPriority `json:"priority"`
	Status             domain.TicketStatus   `json:"status"`
	AssignedTo         *string               `json:"assigned_to"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
	ResolvedAt         *time.Time            `json:"resolved_at"`
}

// RoutingDecision explains an assignment.
type RoutingDecision struct {
	AgentID   string           `json:"agent_id"`
	AgentName string           `json:"agent_name"`
	Score     float64          `json:"score"`
	Rationale string           `json:"rationale"`
	Attempts  int              `json:"attempts"`
	Ranking   []CandidateScore `json:"ranking,omitempty"`
}

// CandidateScore is one row of the routing ranking.
type CandidateScore struct {
	AgentID     string  `json:"agent_id"`
	Total       float64 `json:"total"`
	Expertise   float64 `json:"expertise"`
	Workload    float64 `json:"workload"`
	Performance float64 `json:"performance"`
	Speed       float64 `json:"speed"`
}

// CreateTicketResponse carries the new ticket and the auto-routing
// decision, if one was made.
type CreateTicketResponse struct {
	Ticket  TicketResponse   `json:"ticket"`
	Routing *RoutingDecision `json:"routing"`
}

// AssignmentResponse is returned by manual assignment and routing.
type AssignmentResponse struct {
	Ticket  TicketResponse  `json:"ticket"`
	Routing RoutingDecision `json:"routing"`
}

// MessageResponse is a ticket thread entry.
type MessageResponse struct {
	ID                   string    `json:"id"`
	TicketID             string    `json:"ticket_id"`
	Message              string    `json:"message"`
	IsAgentResponse      bool      `json:"is_agent_response"`
	AgentName            string    `json:"agent_name,omitempty"`
	IsAISuggested        bool      `json:"is_ai_suggested"`
	SuggestionConfidence *float64  `json:"suggestion_confidence"`
	CreatedAt            time.Time `json:"created_at"`
}

// TicketHistoryResponse entry.
type TicketHistoryResponse struct {
	ID            string                  `json:"id"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	ChangedByType domain.ActorType        `json:"changed_by_type"`
	ChangedByID   *string                 `json:"changed_by_id"`
	OldValue      map[string]any          `json:"old_value"`
	NewValue      map[string]any          `json:"new_value"`
	CreatedAt     time.Time               `json:"created_at"`
}
