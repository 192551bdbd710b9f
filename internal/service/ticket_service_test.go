package service

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/triage"
)

// interleavingStatuses runs a competing write once, right before the first
// status commit, as if another request landed between read and write.
type interleavingStatuses struct {
	inner  repository.StatusCommitter
	before func()
	ran    bool
}

func (c *interleavingStatuses) CommitStatus(ctx context.Context, ticketID string, apply repository.StatusFunc) (*repository.StatusOutcome, error) {
	if !c.ran {
		c.ran = true
		c.before()
	}
	return c.inner.CommitStatus(ctx, ticketID, apply)
}

func interleavedFixture(t *testing.T, opts fixtureOptions) (*fixture, *interleavingStatuses) {
	t.Helper()
	committer := &interleavingStatuses{}
	opts.wrapStatuses = func(inner repository.StatusCommitter) repository.StatusCommitter {
		committer.inner = inner
		return committer
	}
	return newFixture(t, opts), committer
}

func TestCreateTicketScoresAndStores(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ticket := f.addTicket(t, "Double charge", "I was charged twice for my subscription")

	assert.Regexp(t, regexp.MustCompile(`^TKT-20260601-[0-9A-F]{6}$`), ticket.TicketNumber)
	assert.Equal(t, domain.CategoryBilling, ticket.Category)
	assert.Equal(t, domain.SentimentNeutral, ticket.Sentiment)
	assert.Equal(t, domain.TicketPriorityLow, ticket.Priority)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Nil(t, ticket.AssignedAgentID)

	stored, err := f.tickets.GetTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.TicketNumber, stored.TicketNumber)

	history, err := f.tickets.ListHistory(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ChangeTypeCreated, history[0].ChangeType)
	assert.Equal(t, domain.ActorTypeCustomer, history[0].ChangedByType)

	require.Len(t, f.eventsOf(events.EventTicketCreated), 1)
}

func TestCreateTicketExtendedHeuristics(t *testing.T) {
	f := newFixture(t, fixtureOptions{extended: true})
	ticket := f.addTicket(t, "URGENT", "URGENT!!! System is DOWN and I am frustrated")

	assert.Equal(t, 1.0, ticket.UrgencyScore)
	assert.Equal(t, domain.TicketPriorityUrgent, ticket.Priority)
	assert.Equal(t, domain.SentimentNegative, ticket.Sentiment)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()

	_, err := f.tickets.CreateTicket(ctx, TicketCreateInput{Subject: "  ", Description: "body"})
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	_, err = f.tickets.CreateTicket(ctx, TicketCreateInput{Subject: "s", Description: "d", CustomerEmail: "not-an-email"})
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	long := strings.Repeat("x", maxSubjectLength+1)
	_, err = f.tickets.CreateTicket(ctx, TicketCreateInput{Subject: long, Description: "d"})
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
}

func TestCreateTicketAutoRoutes(t *testing.T) {
	f := newFixture(t, fixtureOptions{autoRoute: true})
	f.addAgent(t, "tech", 5, "technical")
	billing := f.addAgent(t, "bill", 5, "billing")

	result, err := f.tickets.CreateTicket(context.Background(), TicketCreateInput{
		Subject:     "Refund",
		Description: "Please refund the invoice payment",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Route)
	assert.Equal(t, billing.ID, result.Route.Result.AgentID)
	assert.Equal(t, domain.TicketStatusInProgress, result.Ticket.Status)
	require.NotNil(t, result.Ticket.AssignedAgentID)
	assert.Equal(t, billing.ID, *result.Ticket.AssignedAgentID)

	assigned := f.eventsOf(events.EventTicketAssigned)
	require.Len(t, assigned, 1)
	payload := assigned[0].Payload.(events.TicketAssignedPayload)
	assert.Equal(t, "bill", payload.AgentName)
	assert.Equal(t, domain.ActorTypeSystem, assigned[0].Actor.Type)
}

func TestCreateTicketWithoutEligibleAgentStaysOpen(t *testing.T) {
	f := newFixture(t, fixtureOptions{autoRoute: true})
	f.addAgent(t, "full", 0, "billing")

	result, err := f.tickets.CreateTicket(context.Background(), TicketCreateInput{
		Subject:     "Invoice",
		Description: "Wrong invoice",
	})
	require.NoError(t, err)
	assert.Nil(t, result.Route)
	assert.Equal(t, domain.TicketStatusOpen, result.Ticket.Status)
	assert.Nil(t, result.Ticket.AssignedAgentID)
	assert.Len(t, f.eventsOf(events.EventTicketRoutingFailed), 1)
}

func TestUpdateStatusStrictRejectsLeavingClosed(t *testing.T) {
	f := newFixture(t, fixtureOptions{mode: triage.Strict})
	ticket := f.addTicket(t, "Login", "Cannot access my account")
	ctx := context.Background()
	actor := AgentActor("agent-1")

	_, err := f.tickets.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed, actor)
	require.NoError(t, err)

	_, err = f.tickets.UpdateStatus(ctx, ticket.ID, domain.TicketStatusOpen, actor)
	assert.Equal(t, "INVALID_TRANSITION", domainCode(t, err))
	assert.ErrorIs(t, err, triage.ErrInvalidTransition)

	stored, err := f.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)
}

func TestUpdateStatusUnknownTarget(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ticket := f.addTicket(t, "Hello", "question")
	_, err := f.tickets.UpdateStatus(context.Background(), ticket.ID, domain.TicketStatus("ARCHIVED"), AgentActor("a"))
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	_, err = f.tickets.UpdateStatus(context.Background(), "missing", domain.TicketStatusClosed, AgentActor("a"))
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
}

func TestResolveStampsOnceAndUpdatesAgentStats(t *testing.T) {
	f := newFixture(t, fixtureOptions{autoRoute: true})
	agent := f.addAgent(t, "tech", 5, "technical")
	ticket := f.addTicket(t, "Crash", "The app shows an error and crashes")
	require.NotNil(t, ticket.AssignedAgentID)
	ctx := context.Background()
	actor := AgentActor(agent.ID)

	f.advance(2 * time.Hour)
	resolved, err := f.tickets.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, actor)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	firstResolved := *resolved.ResolvedAt

	f.advance(time.Hour)
	_, err = f.tickets.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress, actor)
	require.NoError(t, err)
	again, err := f.tickets.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, actor)
	require.NoError(t, err)
	assert.Equal(t, firstResolved, *again.ResolvedAt)

	stored, err := f.agents.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalHandled)
	assert.InDelta(t, 2.0, stored.AvgResolutionTimeHours, 0.01)

	history, err := f.tickets.ListHistory(ctx, ticket.ID)
	require.NoError(t, err)
	var changes []domain.TicketChangeType
	for _, h := range history {
		changes = append(changes, h.ChangeType)
	}
	assert.Equal(t, []domain.TicketChangeType{
		domain.ChangeTypeCreated,
		domain.ChangeTypeStatus,   // OPEN -> IN_PROGRESS by routing
		domain.ChangeTypeAssignee, // routing
		domain.ChangeTypeStatus,   // -> RESOLVED
		domain.ChangeTypeStatus,   // -> IN_PROGRESS
		domain.ChangeTypeStatus,   // -> RESOLVED
	}, changes)
}

func TestUpdateStatusKeepsAssignmentMadeMeanwhile(t *testing.T) {
	f, committer := interleavedFixture(t, fixtureOptions{})
	agent := f.addAgent(t, "tech", 5, "technical")
	ticket := f.addTicket(t, "Crash", "The app shows an error and crashes")
	require.Nil(t, ticket.AssignedAgentID)
	ctx := context.Background()
	committer.before = func() {
		_, err := f.routing.RouteTicket(ctx, ticket.ID, events.SystemActor)
		assert.NoError(t, err)
		f.advance(time.Hour)
	}

	resolved, err := f.tickets.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, AgentActor(agent.ID))
	require.NoError(t, err)
	require.NotNil(t, resolved.AssignedAgentID)
	assert.Equal(t, agent.ID, *resolved.AssignedAgentID)

	stored, err := f.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, stored.Status)
	require.NotNil(t, stored.AssignedAgentID)
	assert.Equal(t, agent.ID, *stored.AssignedAgentID)

	// the resolution is credited to the agent who held the ticket at commit
	credited, err := f.agents.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, credited.TotalHandled)

	changed := f.eventsOf(events.EventTicketStatusChanged)
	require.Len(t, changed, 1)
	payload := changed[0].Payload.(events.TicketStatusChangedPayload)
	assert.Equal(t, domain.TicketStatusInProgress, payload.OldStatus)
	assert.Equal(t, domain.TicketStatusResolved, payload.NewStatus)
}

func TestUpdateStatusCountsResolutionOnceWhenRacing(t *testing.T) {
	f, committer := interleavedFixture(t, fixtureOptions{autoRoute: true})
	agent := f.addAgent(t, "tech", 5, "technical")
	ticket := f.addTicket(t, "Crash", "The app shows an error and crashes")
	require.NotNil(t, ticket.AssignedAgentID)
	ctx := context.Background()
	actor := AgentActor(agent.ID)

	f.advance(2 * time.Hour)
	var firstResolved time.Time
	committer.before = func() {
		first, err := f.tickets.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, actor)
		if assert.NoError(t, err) && assert.NotNil(t, first.ResolvedAt) {
			firstResolved = *first.ResolvedAt
		}
		f.advance(time.Hour)
	}

	second, err := f.tickets.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, actor)
	require.NoError(t, err)
	require.NotNil(t, second.ResolvedAt)
	assert.Equal(t, firstResolved, *second.ResolvedAt)

	stored, err := f.agents.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalHandled)
	assert.InDelta(t, 2.0, stored.AvgResolutionTimeHours, 0.01)
}

func TestConcurrentResolutionsUpdateStatsOnce(t *testing.T) {
	f := newFixture(t, fixtureOptions{autoRoute: true})
	agent := f.addAgent(t, "tech", 5, "technical")
	ticket := f.addTicket(t, "Crash", "The app shows an error and crashes")
	ctx := context.Background()
	f.advance(time.Hour)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := f.tickets.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, AgentActor(agent.ID))
			return err
		})
	}
	require.NoError(t, g.Wait())

	stored, err := f.agents.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalHandled)

	// a later profile edit keeps the recorded stats
	name := "renamed"
	updated, err := f.agents.UpdateAgent(ctx, agent.ID, AgentUpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.TotalHandled)
}

func TestResponsesAndSuggestions(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ticket := f.addTicket(t, "Feature", "I would like a dark mode feature")
	ctx := context.Background()

	suggestion, err := f.tickets.SuggestResponse(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryFeatureRequest, suggestion.Category)
	assert.Contains(t, suggestion.Text, "feature request")

	confidence := suggestion.Confidence
	resp, err := f.tickets.AddResponse(ctx, ticket.ID, ResponseInput{
		Message:              suggestion.Text,
		IsAgentResponse:      true,
		AgentName:            "Robin",
		IsAISuggested:        true,
		SuggestionConfidence: &confidence,
	}, AgentActor("agent-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)

	_, err = f.tickets.AddResponse(ctx, ticket.ID, ResponseInput{Message: "  "}, AgentActor("agent-1"))
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	responses, err := f.tickets.ListResponses(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.True(t, responses[0].IsAISuggested)
	assert.Len(t, f.eventsOf(events.EventTicketResponseAdded), 1)

	_, err = f.tickets.ListResponses(ctx, "missing")
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
}

func TestListTicketsFilters(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.addTicket(t, "Invoice", "invoice is wrong")
	f.addTicket(t, "Login", "cannot login to my account")
	ctx := context.Background()

	billing := domain.CategoryBilling
	tickets, err := f.tickets.ListTickets(ctx, TicketListFilter{Category: &billing})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "Invoice", tickets[0].Subject)

	bogus := domain.Category("legal")
	_, err = f.tickets.ListTickets(ctx, TicketListFilter{Category: &bogus})
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
}
