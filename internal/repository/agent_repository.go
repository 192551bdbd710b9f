package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// AgentRepository handles persistence for support agents.
type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) error
	// Modify locks the agent, applies mutate to the fresh row and writes it
	// back in one step, so concurrent stat updates are never lost.
	Modify(ctx context.Context, id string, mutate AgentMutator) (*domain.Agent, error)
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	List(ctx context.Context, filter AgentFilter) ([]domain.Agent, error)
	// ListCandidates returns active, available agents in a stable order
	// (creation time, then id) with live ticket counts.
	ListCandidates(ctx context.Context) ([]domain.Agent, error)
}

// AgentMutator edits a freshly read agent. Returning an error aborts the write.
type AgentMutator func(agent *domain.Agent) error

// AgentFilter defines query params for agent listing.
type AgentFilter struct {
	Active    *bool
	Available *bool
	Limit     int
	Offset    int
}

// agentColumns derives current_ticket_count from the tickets table; the
// count is never stored.
const agentColumns = `a.id, a.name, a.email, a.expertise, a.max_tickets, a.is_active, a.is_available,
               (SELECT COUNT(*) FROM tickets t WHERE t.assigned_agent_id = a.id AND t.status <> 'CLOSED'),
               a.total_handled, a.avg_resolution_time_hours, a.satisfaction_score, a.created_at, a.updated_at`

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

func (r *agentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	const query = `
        INSERT INTO agents (id, name, email, expertise, max_tickets, is_active, is_available,
            total_handled, avg_resolution_time_hours, satisfaction_score, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := r.pool.Exec(ctx, query,
		agent.ID,
		agent.Name,
		agent.Email,
		agent.Expertise,
		agent.MaxTickets,
		agent.IsActive,
		agent.IsAvailable,
		agent.TotalHandled,
		agent.AvgResolutionTimeHours,
		agent.SatisfactionScore,
		agent.CreatedAt,
		agent.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: agent email %s", ErrDuplicate, agent.Email)
	}
	return err
}

func (r *agentRepository) Modify(ctx context.Context, id string, mutate AgentMutator) (*domain.Agent, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin agent update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	agent, err := lockAgent(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(agent); err != nil {
		return nil, err
	}
	if err := updateAgent(ctx, tx, agent); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit agent update: %w", err)
	}
	return agent, nil
}

func (r *agentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents a WHERE a.id=$1`
	return scanAgent(r.pool.QueryRow(ctx, query, id))
}

func (r *agentRepository) List(ctx context.Context, filter AgentFilter) ([]domain.Agent, error) {
	args := []any{}
	clauses := []string{}

	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("a.is_active=$%d", len(args)))
	}
	if filter.Available != nil {
		args = append(args, *filter.Available)
		clauses = append(clauses, fmt.Sprintf("a.is_available=$%d", len(args)))
	}

	query := `SELECT ` + agentColumns + ` FROM agents a`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" ORDER BY a.created_at ASC, a.id ASC LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAgents(rows)
}

func (r *agentRepository) ListCandidates(ctx context.Context) ([]domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents a
        WHERE a.is_active AND a.is_available
        ORDER BY a.created_at ASC, a.id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAgents(rows)
}

// lockAgent reads the agent with its live ticket count and holds the row
// lock until the transaction ends.
func lockAgent(ctx context.Context, tx pgx.Tx, id string) (*domain.Agent, error) {
	agent, err := scanAgent(tx.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents a WHERE a.id=$1 FOR UPDATE OF a`, id))
	if err != nil {
		return nil, fmt.Errorf("lock agent: %w", err)
	}
	return agent, nil
}

func updateAgent(ctx context.Context, db querier, agent *domain.Agent) error {
	const query = `
        UPDATE agents
        SET name=$1, email=$2, expertise=$3, max_tickets=$4, is_active=$5, is_available=$6,
            total_handled=$7, avg_resolution_time_hours=$8, satisfaction_score=$9, updated_at=$10
        WHERE id=$11`

	cmd, err := db.Exec(ctx, query,
		agent.Name,
		agent.Email,
		agent.Expertise,
		agent.MaxTickets,
		agent.IsActive,
		agent.IsAvailable,
		agent.TotalHandled,
		agent.AvgResolutionTimeHours,
		agent.SatisfactionScore,
		agent.UpdatedAt,
		agent.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: agent email %s", ErrDuplicate, agent.Email)
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var agent domain.Agent
	if err := row.Scan(agentFields(&agent)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &agent, nil
}

func scanAgents(rows pgx.Rows) ([]domain.Agent, error) {
	var result []domain.Agent
	for rows.Next() {
		var agent domain.Agent
		if err := rows.Scan(agentFields(&agent)...); err != nil {
			return nil, err
		}
		result = append(result, agent)
	}
	return result, rows.Err()
}

func agentFields(agent *domain.Agent) []any {
	return []any{
		&agent.ID,
		&agent.Name,
		&agent.Email,
		&agent.Expertise,
		&agent.MaxTickets,
		&agent.IsActive,
		&agent.IsAvailable,
		&agent.CurrentTicketCount,
		&agent.TotalHandled,
		&agent.AvgResolutionTimeHours,
		&agent.SatisfactionScore,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	}
}
