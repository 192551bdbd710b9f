package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// StatusFunc applies a lifecycle change to a freshly locked ticket.
// Returning an error aborts the commit.
type StatusFunc func(ticket *domain.Ticket) error

// StatusOutcome is the result of a committed status change.
type StatusOutcome struct {
	// Previous is the ticket as it was before the change.
	Previous domain.Ticket
	Ticket   *domain.Ticket
	// Agent is the assignee with updated resolution stats. It is nil unless
	// the change resolved the ticket for the first time.
	Agent *domain.Agent
}

// StatusCommitter commits a status change atomically: apply runs against
// the locked ticket row, and the first resolution is folded into the
// assignee's stats before the lock is released.
type StatusCommitter interface {
	CommitStatus(ctx context.Context, ticketID string, apply StatusFunc) (*StatusOutcome, error)
}

// statusLockAttempts bounds retries when the assignee changes between the
// unlocked read and the row lock.
const statusLockAttempts = 3

var errAssigneeMoved = errors.New("ticket assignee changed while locking")

type statusCommitter struct {
	pool *pgxpool.Pool
}

// NewStatusCommitter builds the Postgres committer.
func NewStatusCommitter(pool *pgxpool.Pool) StatusCommitter {
	return &statusCommitter{pool: pool}
}

func (c *statusCommitter) CommitStatus(ctx context.Context, ticketID string, apply StatusFunc) (*StatusOutcome, error) {
	for attempt := 1; ; attempt++ {
		outcome, err := c.commit(ctx, ticketID, apply)
		if errors.Is(err, errAssigneeMoved) && attempt < statusLockAttempts {
			continue
		}
		return outcome, err
	}
}

func (c *statusCommitter) commit(ctx context.Context, ticketID string, apply StatusFunc) (*StatusOutcome, error) {
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin status change: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		assignee   *string
		unresolved bool
	)
	err = tx.QueryRow(ctx, `SELECT assigned_agent_id, resolved_at IS NULL FROM tickets WHERE id=$1`, ticketID).
		Scan(&assignee, &unresolved)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("read ticket: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read ticket: %w", err)
	}

	// Agent row before ticket row, the same order CommitAssignment uses.
	var agent *domain.Agent
	if assignee != nil && unresolved {
		if agent, err = lockAgent(ctx, tx, *assignee); err != nil {
			return nil, err
		}
	}
	ticket, err := scanTicket(tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1 FOR UPDATE`, ticketID))
	if err != nil {
		return nil, fmt.Errorf("lock ticket: %w", err)
	}
	if !sameID(assignee, ticket.AssignedAgentID) {
		return nil, errAssigneeMoved
	}

	previous := *ticket
	if err := apply(ticket); err != nil {
		return nil, err
	}
	if err := updateTicket(ctx, tx, ticket); err != nil {
		return nil, fmt.Errorf("persist status: %w", err)
	}

	outcome := &StatusOutcome{Previous: previous, Ticket: ticket}
	if agent != nil && previous.ResolvedAt == nil && ticket.ResolvedAt != nil {
		agent.RecordResolution(ticket.ResolvedAt.Sub(ticket.CreatedAt).Hours(), ticket.UpdatedAt)
		if err := updateAgent(ctx, tx, agent); err != nil {
			return nil, fmt.Errorf("persist resolution stats: %w", err)
		}
		outcome.Agent = agent
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit status change: %w", err)
	}
	return outcome, nil
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
