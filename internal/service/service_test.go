package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/repository/memstore"
	"github.com/spec-kit/triage-service/internal/triage"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// fixture wires every service over one in-memory store.
type fixture struct {
	store      *memstore.Store
	dispatcher events.Dispatcher
	mu         sync.Mutex
	published  []events.Event
	metrics    *observability.Metrics
	now        time.Time
	tickets    *TicketService
	routing    *RoutingService
	agents     *AgentService
}

type fixtureOptions struct {
	mode      triage.LifecycleMode
	autoRoute bool
	extended  bool
	// wrapAssignments intercepts commits, e.g. to simulate lost races.
	wrapAssignments func(repository.AssignmentCommitter) repository.AssignmentCommitter
	// wrapStatuses intercepts status commits the same way.
	wrapStatuses func(repository.StatusCommitter) repository.StatusCommitter
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	f := &fixture{
		store:      memstore.New(),
		dispatcher: events.NewInMemoryDispatcher(),
		metrics:    observability.NewMetrics(),
		now:        time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	f.dispatcher.SubscribeAll(func(ctx context.Context, e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.published = append(f.published, e)
		return nil
	})
	clock := Clock(func() time.Time { return f.now })
	lifecycle := triage.NewLifecycle(opts.mode, clock)

	assignments := f.store.Assignments()
	if opts.wrapAssignments != nil {
		assignments = opts.wrapAssignments(assignments)
	}
	statuses := f.store.Statuses()
	if opts.wrapStatuses != nil {
		statuses = opts.wrapStatuses(statuses)
	}
	f.routing = NewRoutingService(RoutingDependencies{
		TicketRepo:         f.store.Tickets(),
		AgentRepo:          f.store.Agents(),
		Assignments:        assignments,
		HistoryRepo:        f.store.History(),
		Dispatcher:         f.dispatcher,
		Lifecycle:          lifecycle,
		Metrics:            f.metrics,
		Logger:             zap.NewNop(),
		Now:                clock,
		RerouteConcurrency: 4,
	})
	f.tickets = NewTicketService(TicketDependencies{
		TicketRepo:         f.store.Tickets(),
		Statuses:           statuses,
		ResponseRepo:       f.store.Responses(),
		HistoryRepo:        f.store.History(),
		Dispatcher:         f.dispatcher,
		Routing:            f.routing,
		Lifecycle:          lifecycle,
		Logger:             zap.NewNop(),
		Now:                clock,
		ExtendedHeuristics: opts.extended,
		AutoRoute:          opts.autoRoute,
	})
	f.agents = NewAgentService(AgentDependencies{
		AgentRepo:  f.store.Agents(),
		TicketRepo: f.store.Tickets(),
		Now:        clock,
	})
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) addAgent(t *testing.T, name string, maxTickets int, expertise ...string) *domain.Agent {
	t.Helper()
	agent, err := f.agents.CreateAgent(context.Background(), AgentCreateInput{
		Name:       name,
		Email:      name + "@support.example",
		Expertise:  expertise,
		MaxTickets: &maxTickets,
	})
	require.NoError(t, err)
	// keep creation order stable for the candidate ordering
	f.advance(time.Second)
	return agent
}

func (f *fixture) addTicket(t *testing.T, subject, description string) *domain.Ticket {
	t.Helper()
	result, err := f.tickets.CreateTicket(context.Background(), TicketCreateInput{
		CustomerName:  "Casey",
		CustomerEmail: "casey@example.com",
		Subject:       subject,
		Description:   description,
	})
	require.NoError(t, err)
	f.advance(time.Second)
	return result.Ticket
}

func (f *fixture) eventsOf(eventType events.EventType) []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Event
	for _, e := range f.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return apperrors.ToDomainError(err).Code
}
