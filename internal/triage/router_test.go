package triage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/triage-service/internal/domain"
)

func agentFixture(id string, expertise []string, current, max int) domain.Agent {
	return domain.Agent{
		ID:                 id,
		Name:               id,
		Email:              id + "@example.com",
		Expertise:          expertise,
		MaxTickets:         max,
		CurrentTicketCount: current,
		IsActive:           true,
		IsAvailable:        true,
	}
}

func TestScoreAgentComponents(t *testing.T) {
	ticket := &domain.Ticket{Category: domain.CategoryTechnical}

	agent := agentFixture("a", []string{"technical"}, 2, 10)
	agent.SatisfactionScore = 4
	agent.AvgResolutionTimeHours = 6

	got, ok := ScoreAgent(ticket, agent)
	require.True(t, ok)
	assert.InDelta(t, 40, got.Expertise, 1e-9)
	assert.InDelta(t, 24, got.Workload, 1e-9)
	assert.InDelta(t, 16, got.Performance, 1e-9)
	assert.InDelta(t, 7.5, got.Speed, 1e-9)
	assert.InDelta(t, 87.5, got.Total, 1e-9)
}

func TestScoreAgentExpertiseTiers(t *testing.T) {
	tests := []struct {
		name      string
		category  domain.Category
		expertise []string
		want      float64
	}{
		{"match", domain.CategoryBilling, []string{"billing"}, 40},
		{"match ignores case and spaces", domain.CategoryBilling, []string{" Billing "}, 40},
		{"general fallback", domain.CategoryBilling, []string{"general"}, 20},
		{"uncategorized ticket", "", []string{"billing"}, 15},
		{"uncategorized ticket with general agent", "", []string{"general"}, 20},
		{"mismatch", domain.CategoryBilling, []string{"technical"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ScoreAgent(&domain.Ticket{Category: tt.category}, agentFixture("a", tt.expertise, 0, 5))
			require.True(t, ok)
			assert.InDelta(t, tt.want, got.Expertise, 1e-9)
		})
	}
}

func TestScoreAgentSlowAgentSpeedFloorsAtZero(t *testing.T) {
	agent := agentFixture("a", nil, 0, 5)
	agent.AvgResolutionTimeHours = 48
	got, ok := ScoreAgent(&domain.Ticket{}, agent)
	require.True(t, ok)
	assert.Equal(t, 0.0, got.Speed)
}

func TestScoreAgentExclusions(t *testing.T) {
	ticket := &domain.Ticket{Category: domain.CategoryTechnical}

	inactive := agentFixture("inactive", []string{"technical"}, 0, 5)
	inactive.IsActive = false
	away := agentFixture("away", []string{"technical"}, 0, 5)
	away.IsAvailable = false
	full := agentFixture("full", []string{"technical"}, 5, 5)
	zero := agentFixture("zero", []string{"technical"}, 0, 0)

	for _, agent := range []domain.Agent{inactive, away, full, zero} {
		_, ok := ScoreAgent(ticket, agent)
		assert.False(t, ok, agent.ID)
	}
}

func TestSelectAgentCapacityGateBeatsExpertise(t *testing.T) {
	ticket := &domain.Ticket{Category: domain.CategoryTechnical}
	a := agentFixture("A", []string{"technical"}, 5, 5)
	b := agentFixture("B", []string{"general"}, 2, 10)

	got, err := SelectAgent(ticket, []domain.Agent{a, b})
	require.NoError(t, err)
	assert.Equal(t, "B", got.AgentID)
	require.Len(t, got.Ranking, 1)
	assert.NotEmpty(t, got.Rationale)
}

func TestSelectAgentTieKeepsPoolOrder(t *testing.T) {
	ticket := &domain.Ticket{Category: domain.CategoryBilling}
	a := agentFixture("A", []string{"billing"}, 1, 4)
	b := agentFixture("B", []string{"billing"}, 1, 4)

	got, err := SelectAgent(ticket, []domain.Agent{b, a})
	require.NoError(t, err)
	assert.Equal(t, "B", got.AgentID)

	got, err = SelectAgent(ticket, []domain.Agent{a, b})
	require.NoError(t, err)
	assert.Equal(t, "A", got.AgentID)
}

func TestSelectAgentDeterministic(t *testing.T) {
	ticket := &domain.Ticket{Category: domain.CategoryAccount}
	pool := make([]domain.Agent, 0, 12)
	for i := 0; i < 12; i++ {
		agent := agentFixture(fmt.Sprintf("agent-%02d", i), []string{"general"}, i%3, 6)
		agent.SatisfactionScore = float64(i % 2 * 4)
		pool = append(pool, agent)
	}

	first, err := SelectAgent(ticket, pool)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		got, err := SelectAgent(ticket, pool)
		require.NoError(t, err)
		assert.Equal(t, first.AgentID, got.AgentID)
	}
}

func TestSelectAgentNeverPicksSaturatedAgent(t *testing.T) {
	ticket := &domain.Ticket{Category: domain.CategoryTechnical}
	pool := []domain.Agent{
		agentFixture("full-1", []string{"technical"}, 3, 3),
		agentFixture("full-2", []string{"technical"}, 9, 3),
		agentFixture("free", nil, 4, 5),
	}
	got, err := SelectAgent(ticket, pool)
	require.NoError(t, err)
	assert.Equal(t, "free", got.AgentID)
	for _, score := range got.Ranking {
		assert.Equal(t, "free", score.AgentID)
	}
}

func TestSelectAgentNoEligible(t *testing.T) {
	ticket := &domain.Ticket{Category: domain.CategoryTechnical}

	_, err := SelectAgent(ticket, nil)
	assert.ErrorIs(t, err, ErrNoEligibleAgent)

	_, err = SelectAgent(ticket, []domain.Agent{agentFixture("full", []string{"technical"}, 2, 2)})
	assert.ErrorIs(t, err, ErrNoEligibleAgent)
}

func TestRouterRouteTicket(t *testing.T) {
	router := NewRouter(NewLifecycle(Permissive, nil))

	t.Run("assigns and moves to in progress", func(t *testing.T) {
		ticket := &domain.Ticket{Category: domain.CategoryBilling, Status: domain.TicketStatusOpen}
		result, err := router.RouteTicket(ticket, []domain.Agent{
			agentFixture("tech", []string{"technical"}, 0, 5),
			agentFixture("bill", []string{"billing"}, 0, 5),
		})
		require.NoError(t, err)
		assert.Equal(t, "bill", result.AgentID)
		require.NotNil(t, ticket.AssignedAgentID)
		assert.Equal(t, "bill", *ticket.AssignedAgentID)
		assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)
	})

	t.Run("leaves ticket open when nobody is eligible", func(t *testing.T) {
		ticket := &domain.Ticket{Category: domain.CategoryBilling, Status: domain.TicketStatusOpen}
		_, err := router.RouteTicket(ticket, []domain.Agent{agentFixture("full", nil, 1, 1)})
		assert.ErrorIs(t, err, ErrNoEligibleAgent)
		assert.Nil(t, ticket.AssignedAgentID)
		assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	})
}

func TestRouterAssignRevalidates(t *testing.T) {
	router := NewRouter(NewLifecycle(Strict, nil))

	ticket := &domain.Ticket{Status: domain.TicketStatusOpen}
	err := router.Assign(ticket, agentFixture("full", nil, 3, 3))
	assert.ErrorIs(t, err, ErrAgentAtCapacity)
	assert.Nil(t, ticket.AssignedAgentID)

	closed := &domain.Ticket{Status: domain.TicketStatusClosed}
	err = router.Assign(closed, agentFixture("free", nil, 0, 3))
	assert.ErrorIs(t, err, ErrTicketNotRoutable)
	assert.Nil(t, closed.AssignedAgentID)
}

func TestRouterAssignOnlyRoutesOpenWork(t *testing.T) {
	// permissive mode would accept RESOLVED -> IN_PROGRESS as a status edit,
	// but routing never reopens finished work
	router := NewRouter(NewLifecycle(Permissive, nil))
	free := agentFixture("free", nil, 0, 3)

	for _, status := range []domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusClosed} {
		ticket := &domain.Ticket{Status: status}
		assert.ErrorIs(t, router.Assign(ticket, free), ErrTicketNotRoutable, string(status))
		assert.Equal(t, status, ticket.Status)
		assert.Nil(t, ticket.AssignedAgentID)

		_, err := router.RouteTicket(ticket, []domain.Agent{free})
		assert.ErrorIs(t, err, ErrTicketNotRoutable)
	}

	for _, status := range []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress} {
		ticket := &domain.Ticket{Status: status}
		require.NoError(t, router.Assign(ticket, free), string(status))
		assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)
	}
}

func TestRouterAssignUnowned(t *testing.T) {
	router := NewRouter(NewLifecycle(Permissive, nil))
	owner := "someone"
	ticket := &domain.Ticket{Status: domain.TicketStatusOpen, AssignedAgentID: &owner}

	err := router.AssignUnowned(ticket, agentFixture("free", nil, 0, 3))
	assert.ErrorIs(t, err, ErrTicketAlreadyAssigned)
	assert.Equal(t, "someone", *ticket.AssignedAgentID)

	unowned := &domain.Ticket{Status: domain.TicketStatusOpen}
	require.NoError(t, router.AssignUnowned(unowned, agentFixture("free", nil, 0, 3)))
	assert.Equal(t, "free", *unowned.AssignedAgentID)
}
