package domain

import "time"

// TicketResponse is a message in a ticket thread.
type TicketResponse struct {
	ID                   string
	TicketID             string
	Message              string
	IsAgentResponse      bool
	AgentName            string
	IsAISuggested        bool
	SuggestionConfidence *float64
	CreatedAt            time.Time
}
