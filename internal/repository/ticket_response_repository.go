package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// TicketResponseRepository manages the ticket response thread.
type TicketResponseRepository interface {
	Create(ctx context.Context, resp *domain.TicketResponse) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketResponse, error)
}

type ticketResponseRepository struct {
	pool *pgxpool.Pool
}

// NewTicketResponseRepository builds repository.
func NewTicketResponseRepository(pool *pgxpool.Pool) TicketResponseRepository {
	return &ticketResponseRepository{pool: pool}
}

func (r *ticketResponseRepository) Create(ctx context.Context, resp *domain.TicketResponse) error {
	const query = `
        INSERT INTO ticket_responses (id, ticket_id, message, is_agent_response, agent_name, is_ai_suggested,
            suggestion_confidence, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.pool.Exec(ctx, query,
		resp.ID,
		resp.TicketID,
		resp.Message,
		resp.IsAgentResponse,
		resp.AgentName,
		resp.IsAISuggested,
		resp.SuggestionConfidence,
		resp.CreatedAt,
	)
	return err
}

func (r *ticketResponseRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketResponse, error) {
	const query = `
        SELECT id, ticket_id, message, is_agent_response, agent_name, is_ai_suggested, suggestion_confidence, created_at
        FROM ticket_responses WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketResponse
	for rows.Next() {
		var resp domain.TicketResponse
		if err := rows.Scan(
			&resp.ID,
			&resp.TicketID,
			&resp.Message,
			&resp.IsAgentResponse,
			&resp.AgentName,
			&resp.IsAISuggested,
			&resp.SuggestionConfidence,
			&resp.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, resp)
	}
	return result, rows.Err()
}
