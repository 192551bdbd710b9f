// Package memstore keeps every repository in process memory. It backs the
// service when no Postgres DSN is configured and drives service tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
)

// Store implements the repository interfaces over maps guarded by one lock.
type Store struct {
	mu        sync.RWMutex
	tickets   map[string]*domain.Ticket
	agents    map[string]*domain.Agent
	history   map[string][]domain.TicketHistory
	responses map[string][]domain.TicketResponse
	// insertion order, used to break created_at ties
	ticketSeq map[string]int
	agentSeq  map[string]int
	seq       int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tickets:   map[string]*domain.Ticket{},
		agents:    map[string]*domain.Agent{},
		history:   map[string][]domain.TicketHistory{},
		responses: map[string][]domain.TicketResponse{},
		ticketSeq: map[string]int{},
		agentSeq:  map[string]int{},
	}
}

// Tickets exposes the store as a TicketRepository.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Agents exposes the store as an AgentRepository.
func (s *Store) Agents() repository.AgentRepository { return agentRepo{s} }

// History exposes the store as a TicketHistoryRepository.
func (s *Store) History() repository.TicketHistoryRepository { return historyRepo{s} }

// Responses exposes the store as a TicketResponseRepository.
func (s *Store) Responses() repository.TicketResponseRepository { return responseRepo{s} }

// Assignments exposes the store as an AssignmentCommitter.
func (s *Store) Assignments() repository.AssignmentCommitter { return assignmentRepo{s} }

// Statuses exposes the store as a StatusCommitter.
func (s *Store) Statuses() repository.StatusCommitter { return statusRepo{s} }

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.ID]; ok {
		return fmt.Errorf("%w: ticket %s", repository.ErrDuplicate, ticket.ID)
	}
	for _, existing := range s.tickets {
		if existing.TicketNumber == ticket.TicketNumber {
			return fmt.Errorf("%w: ticket %s", repository.ErrDuplicate, ticket.TicketNumber)
		}
	}
	s.seq++
	s.ticketSeq[ticket.ID] = s.seq
	s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r ticketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTicketLocked(ticket)
}

func (r ticketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTicket(ticket), nil
}

func (r ticketRepo) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Ticket, 0, len(s.tickets))
	for _, ticket := range s.tickets {
		if matchesTicket(ticket, filter) {
			matched = append(matched, ticket)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if filter.OldestFirst {
			return s.ticketBefore(matched[i], matched[j])
		}
		return s.ticketBefore(matched[j], matched[i])
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = repository.DefaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []domain.Ticket{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	result := make([]domain.Ticket, 0, end-offset)
	for _, ticket := range matched[offset:end] {
		result = append(result, *cloneTicket(ticket))
	}
	return result, nil
}

func (r ticketRepo) ListAssigned(ctx context.Context) ([]domain.Ticket, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Ticket, 0, len(s.tickets))
	for _, ticket := range s.tickets {
		if ticket.AssignedAgentID != nil {
			matched = append(matched, ticket)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return s.ticketBefore(matched[i], matched[j]) })

	result := make([]domain.Ticket, 0, len(matched))
	for _, ticket := range matched {
		result = append(result, *cloneTicket(ticket))
	}
	return result, nil
}

func (r ticketRepo) CountByStatusForAgent(ctx context.Context, agentID string) (map[domain.TicketStatus]int, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[domain.TicketStatus]int{}
	for _, ticket := range s.tickets {
		if ticket.AssignedAgentID != nil && *ticket.AssignedAgentID == agentID {
			counts[ticket.Status]++
		}
	}
	return counts, nil
}

type agentRepo struct{ s *Store }

func (r agentRepo) Create(ctx context.Context, agent *domain.Agent) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[agent.ID]; ok {
		return fmt.Errorf("%w: agent %s", repository.ErrDuplicate, agent.ID)
	}
	if s.emailTakenLocked(agent.Email, "") {
		return fmt.Errorf("%w: agent email %s", repository.ErrDuplicate, agent.Email)
	}
	s.seq++
	s.agentSeq[agent.ID] = s.seq
	s.storeAgentLocked(agent)
	return nil
}

func (r agentRepo) Modify(ctx context.Context, id string, mutate repository.AgentMutator) (*domain.Agent, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.agents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	agent := s.liveAgentLocked(stored)
	if err := mutate(agent); err != nil {
		return nil, err
	}
	if s.emailTakenLocked(agent.Email, id) {
		return nil, fmt.Errorf("%w: agent email %s", repository.ErrDuplicate, agent.Email)
	}
	s.storeAgentLocked(agent)
	return cloneAgent(agent), nil
}

func (r agentRepo) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.liveAgentLocked(agent), nil
}

func (r agentRepo) List(ctx context.Context, filter repository.AgentFilter) ([]domain.Agent, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := s.orderedAgentsLocked(func(a *domain.Agent) bool {
		if filter.Active != nil && a.IsActive != *filter.Active {
			return false
		}
		if filter.Available != nil && a.IsAvailable != *filter.Available {
			return false
		}
		return true
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = repository.DefaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ordered) {
		return []domain.Agent{}, nil
	}
	end := offset + limit
	if end > len(ordered) {
		end = len(ordered)
	}
	return ordered[offset:end], nil
}

func (r agentRepo) ListCandidates(ctx context.Context) ([]domain.Agent, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderedAgentsLocked(func(a *domain.Agent) bool { return a.IsActive && a.IsAvailable }), nil
}

type historyRepo struct{ s *Store }

func (r historyRepo) Create(ctx context.Context, history *domain.TicketHistory) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := *history
	entry.OldValue = cloneMap(history.OldValue)
	entry.NewValue = cloneMap(history.NewValue)
	s.history[history.TicketID] = append(s.history[history.TicketID], entry)
	return nil
}

func (r historyRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.history[ticketID]
	result := make([]domain.TicketHistory, len(entries))
	copy(result, entries)
	return result, nil
}

type responseRepo struct{ s *Store }

func (r responseRepo) Create(ctx context.Context, resp *domain.TicketResponse) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[resp.TicketID] = append(s.responses[resp.TicketID], *resp)
	return nil
}

func (r responseRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketResponse, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.responses[ticketID]
	result := make([]domain.TicketResponse, len(entries))
	copy(result, entries)
	return result, nil
}

type assignmentRepo struct{ s *Store }

// CommitAssignment holds the store write lock for the whole read-check-write,
// which serializes commits for every agent at once.
func (r assignmentRepo) CommitAssignment(ctx context.Context, ticketID, agentID string, assign repository.AssignFunc) (*repository.AssignmentOutcome, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("lock agent: %w", repository.ErrNotFound)
	}
	current, ok := s.tickets[ticketID]
	if !ok {
		return nil, fmt.Errorf("lock ticket: %w", repository.ErrNotFound)
	}

	agent := cloneAgent(stored)
	agent.CurrentTicketCount = s.liveCountLocked(agentID, ticketID)

	previous := *cloneTicket(current)
	ticket := cloneTicket(current)
	if err := assign(ticket, *agent); err != nil {
		return nil, err
	}
	if err := s.updateTicketLocked(ticket); err != nil {
		return nil, err
	}
	agent.CurrentTicketCount++
	return &repository.AssignmentOutcome{Previous: previous, Ticket: ticket, Agent: *agent}, nil
}

type statusRepo struct{ s *Store }

// CommitStatus applies the change and any resolution stats under the store
// write lock.
func (r statusRepo) CommitStatus(ctx context.Context, ticketID string, apply repository.StatusFunc) (*repository.StatusOutcome, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tickets[ticketID]
	if !ok {
		return nil, fmt.Errorf("lock ticket: %w", repository.ErrNotFound)
	}
	previous := *cloneTicket(current)
	ticket := cloneTicket(current)
	if err := apply(ticket); err != nil {
		return nil, err
	}
	if err := s.updateTicketLocked(ticket); err != nil {
		return nil, err
	}

	outcome := &repository.StatusOutcome{Previous: previous, Ticket: ticket}
	if previous.ResolvedAt != nil || ticket.ResolvedAt == nil || ticket.AssignedAgentID == nil {
		return outcome, nil
	}
	if stored, ok := s.agents[*ticket.AssignedAgentID]; ok {
		agent := s.liveAgentLocked(stored)
		agent.RecordResolution(ticket.ResolvedAt.Sub(ticket.CreatedAt).Hours(), ticket.UpdatedAt)
		s.storeAgentLocked(agent)
		outcome.Agent = agent
	}
	return outcome, nil
}

// storeAgentLocked keeps a copy of agent; the ticket count is always derived.
func (s *Store) storeAgentLocked(agent *domain.Agent) {
	stored := cloneAgent(agent)
	stored.CurrentTicketCount = 0
	s.agents[agent.ID] = stored
}

func (s *Store) updateTicketLocked(ticket *domain.Ticket) error {
	existing, ok := s.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := cloneTicket(ticket)
	// identity and customer fields are immutable after creation
	updated.TicketNumber = existing.TicketNumber
	updated.CustomerName = existing.CustomerName
	updated.CustomerEmail = existing.CustomerEmail
	updated.CustomerID = existing.CustomerID
	updated.Subject = existing.Subject
	updated.Description = existing.Description
	updated.CreatedAt = existing.CreatedAt
	s.tickets[ticket.ID] = updated
	return nil
}

// liveCountLocked counts the agent's tickets that are not CLOSED, skipping
// exceptID.
func (s *Store) liveCountLocked(agentID, exceptID string) int {
	count := 0
	for id, ticket := range s.tickets {
		if id == exceptID || ticket.AssignedAgentID == nil || *ticket.AssignedAgentID != agentID {
			continue
		}
		if ticket.Status != domain.TicketStatusClosed {
			count++
		}
	}
	return count
}

func (s *Store) liveAgentLocked(agent *domain.Agent) *domain.Agent {
	live := cloneAgent(agent)
	live.CurrentTicketCount = s.liveCountLocked(agent.ID, "")
	return live
}

func (s *Store) orderedAgentsLocked(keep func(*domain.Agent) bool) []domain.Agent {
	matched := make([]*domain.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		if keep(agent) {
			matched = append(matched, agent)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	result := make([]domain.Agent, 0, len(matched))
	for _, agent := range matched {
		result = append(result, *s.liveAgentLocked(agent))
	}
	return result
}

func (s *Store) ticketBefore(a, b *domain.Ticket) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return s.ticketSeq[a.ID] < s.ticketSeq[b.ID]
}

func (s *Store) emailTakenLocked(email, exceptID string) bool {
	for id, agent := range s.agents {
		if id != exceptID && strings.EqualFold(agent.Email, email) {
			return true
		}
	}
	return false
}

func matchesTicket(ticket *domain.Ticket, filter repository.TicketFilter) bool {
	if filter.Status != nil && ticket.Status != *filter.Status {
		return false
	}
	if filter.Category != nil && ticket.Category != *filter.Category {
		return false
	}
	if filter.Priority != nil && ticket.Priority != *filter.Priority {
		return false
	}
	if filter.AssignedAgentID != nil {
		return ticket.AssignedAgentID != nil && *ticket.AssignedAgentID == *filter.AssignedAgentID
	}
	if filter.Unassigned && ticket.AssignedAgentID != nil {
		return false
	}
	return true
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	c := *t
	if t.AssignedAgentID != nil {
		id := *t.AssignedAgentID
		c.AssignedAgentID = &id
	}
	if t.ResolvedAt != nil {
		at := *t.ResolvedAt
		c.ResolvedAt = &at
	}
	return &c
}

func cloneAgent(a *domain.Agent) *domain.Agent {
	c := *a
	c.Expertise = append([]string(nil), a.Expertise...)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
