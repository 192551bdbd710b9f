package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// TicketFilter captures list parameters.
type TicketFilter struct {
	Status          *domain.TicketStatus
	Category        *domain.Category
	Priority        *domain.TicketPriority
	AssignedAgentID *string
	// Unassigned restricts to tickets without an agent. Ignored when
	// AssignedAgentID is set.
	Unassigned bool
	// OldestFirst orders by creation ascending; the default is newest first.
	OldestFirst bool
	Limit       int
	Offset      int
}

// DefaultListLimit applies when a filter carries no positive limit.
const DefaultListLimit = 20

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListAssigned returns every ticket that has an agent, for metrics.
	ListAssigned(ctx context.Context) ([]domain.Ticket, error)
	// CountByStatusForAgent groups the agent's tickets by status.
	CountByStatusForAgent(ctx context.Context, agentID string) (map[domain.TicketStatus]int, error)
}

const ticketColumns = `id, ticket_number, customer_name, customer_email, customer_id, subject, description,
               category, category_confidence, sentiment, sentiment_score, urgency_score, priority, status,
               assigned_agent_id, created_at, updated_at, resolved_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, ticket_number, customer_name, customer_email, customer_id, subject, description,
            category, category_confidence, sentiment, sentiment_score, urgency_score, priority, status,
            assigned_agent_id, created_at, updated_at, resolved_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.TicketNumber,
		ticket.CustomerName,
		ticket.CustomerEmail,
		ticket.CustomerID,
		ticket.Subject,
		ticket.Description,
		ticket.Category,
		ticket.CategoryConfidence,
		ticket.Sentiment,
		ticket.SentimentScore,
		ticket.UrgencyScore,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedAgentID,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.ResolvedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: ticket %s", ErrDuplicate, ticket.TicketNumber)
	}
	return err
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	return updateTicket(ctx, r.pool, ticket)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.AssignedAgentID != nil {
		args = append(args, *filter.AssignedAgentID)
		clauses = append(clauses, fmt.Sprintf("assigned_agent_id=$%d", len(args)))
	} else if filter.Unassigned {
		clauses = append(clauses, "assigned_agent_id IS NULL")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	order := "DESC"
	if filter.OldestFirst {
		order = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at %s, id %s LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), order, order, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListAssigned(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE assigned_agent_id IS NOT NULL ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountByStatusForAgent(ctx context.Context, agentID string) (map[domain.TicketStatus]int, error) {
	const query = `SELECT status, COUNT(*) FROM tickets WHERE assigned_agent_id=$1 GROUP BY status`
	rows, err := r.pool.Query(ctx, query, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[domain.TicketStatus]int{}
	for rows.Next() {
		var (
			status domain.TicketStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func updateTicket(ctx context.Context, db querier, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET category=$1, category_confidence=$2, sentiment=$3, sentiment_score=$4,
            urgency_score=$5, priority=$6, status=$7, assigned_agent_id=$8, updated_at=$9, resolved_at=$10
        WHERE id=$11`
	cmd, err := db.Exec(ctx, query,
		ticket.Category,
		ticket.CategoryConfidence,
		ticket.Sentiment,
		ticket.SentimentScore,
		ticket.UrgencyScore,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedAgentID,
		ticket.UpdatedAt,
		ticket.ResolvedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(ticketFields(&ticket)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(ticketFields(&ticket)...); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func ticketFields(ticket *domain.Ticket) []any {
	return []any{
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.CustomerName,
		&ticket.CustomerEmail,
		&ticket.CustomerID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Category,
		&ticket.CategoryConfidence,
		&ticket.Sentiment,
		&ticket.SentimentScore,
		&ticket.UrgencyScore,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedAgentID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
