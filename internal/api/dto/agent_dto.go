package dto

import "time"

// CreateAgentRequest payload. Expertise may be a list of tags.
type CreateAgentRequest struct {
	Name                   string   `json:"name"`
	Email                  string   `json:"email"`
	Expertise              []string `json:"expertise"`
	MaxTickets             *int     `json:"max_tickets"`
	IsAvailable            *bool    `json:"is_available"`
	AvgResolutionTimeHours float64  `json:"avg_resolution_time"`
	SatisfactionScore      float64  `json:"satisfaction_score"`
}

// UpdateAgentRequest payload; omitted fields are left unchanged.
type UpdateAgentRequest struct {
	Name                   *string   `json:"name"`
	Email                  *string   `json:"email"`
	Expertise              *[]string `json:"expertise"`
	MaxTickets             *int      `json:"max_tickets"`
	IsAvailable            *bool     `json:"is_available"`
	IsActive               *bool     `json:"is_active"`
	AvgResolutionTimeHours *float64  `json:"avg_resolution_time"`
	SatisfactionScore      *float64  `json:"satisfaction_score"`
}

// AgentResponse is the agent representation returned by the API.
type AgentResponse struct {
	ID                     string    `json:"id"`
	Name                   string    `json:"name"`
	Email                  string    `json:"email"`
	Expertise              []string  `json:"expertise"`
	MaxTickets             int       `json:"max_tickets"`
	CurrentTicketCount     int       `json:"current_ticket_count"`
	IsActive               bool      `json:"is_active"`
	IsAvailable            bool      `json:"is_available"`
	TotalHandled           int       `json:"total_tickets_handled"`
	AvgResolutionTimeHours float64   `json:"avg_resolution_time"`
	SatisfactionScore      float64   `json:"satisfaction_score"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}
