package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// AssignFunc applies an assignment to ticket given a freshly read agent.
// Returning an error aborts the commit.
type AssignFunc func(ticket *domain.Ticket, agent domain.Agent) error

// AssignmentOutcome is the result of a committed assignment.
type AssignmentOutcome struct {
	// Previous is the ticket as it was before the assignment.
	Previous domain.Ticket
	Ticket   *domain.Ticket
	// Agent carries the live count read inside the critical section,
	// including the ticket just assigned.
	Agent domain.Agent
}

// AssignmentCommitter commits a ticket assignment atomically: the agent's
// live ticket count is re-read and assign is applied inside one critical
// section per agent, so two commits can never both take the last slot.
type AssignmentCommitter interface {
	CommitAssignment(ctx context.Context, ticketID, agentID string, assign AssignFunc) (*AssignmentOutcome, error)
}

type assignmentCommitter struct {
	pool *pgxpool.Pool
}

// NewAssignmentCommitter builds the Postgres committer.
func NewAssignmentCommitter(pool *pgxpool.Pool) AssignmentCommitter {
	return &assignmentCommitter{pool: pool}
}

func (c *assignmentCommitter) CommitAssignment(ctx context.Context, ticketID, agentID string, assign AssignFunc) (*AssignmentOutcome, error) {
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin assignment: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Agent row first, ticket second: every committer locks in this order.
	agent, err := scanAgent(tx.QueryRow(ctx, `
        SELECT a.id, a.name, a.email, a.expertise, a.max_tickets, a.is_active, a.is_available, 0,
               a.total_handled, a.avg_resolution_time_hours, a.satisfaction_score, a.created_at, a.updated_at
        FROM agents a WHERE a.id=$1 FOR UPDATE`, agentID))
	if err != nil {
		return nil, fmt.Errorf("lock agent: %w", err)
	}
	ticket, err := scanTicket(tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1 FOR UPDATE`, ticketID))
	if err != nil {
		return nil, fmt.Errorf("lock ticket: %w", err)
	}
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE assigned_agent_id=$1 AND status <> 'CLOSED' AND id <> $2`,
		agentID, ticketID,
	).Scan(&agent.CurrentTicketCount); err != nil {
		return nil, fmt.Errorf("count agent tickets: %w", err)
	}

	previous := *ticket
	if err := assign(ticket, *agent); err != nil {
		return nil, err
	}
	if err := updateTicket(ctx, tx, ticket); err != nil {
		return nil, fmt.Errorf("persist assignment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit assignment: %w", err)
	}
	agent.CurrentTicketCount++
	return &AssignmentOutcome{Previous: previous, Ticket: ticket, Agent: *agent}, nil
}
