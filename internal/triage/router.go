package triage

import (
	"fmt"
	"math"
	"sort"

	"github.com/spec-kit/triage-service/internal/domain"
)

// Score weights. A fully matching, idle, top-rated, instant agent scores 100.
const (
	expertiseMatchScore   = 40.0
	expertiseGeneralScore = 20.0
	expertiseUnknownScore = 15.0

	workloadWeight = 30.0

	performanceWeight   = 20.0
	performanceUnrated  = 10.0
	speedWeight         = 10.0
	speedUnrated        = 5.0
	speedHorizonHours   = 24.0
	generalExpertiseTag = string(domain.CategoryGeneral)
)

// AgentScore is the scored breakdown of one eligible candidate.
type AgentScore struct {
	AgentID     string
	Position    int
	Expertise   float64
	Workload    float64
	Performance float64
	Speed       float64
	Total       float64
}

// Rationale renders the score components for logs and API responses.
func (s AgentScore) Rationale() string {
	return fmt.Sprintf("expertise=%.2f workload=%.2f performance=%.2f speed=%.2f total=%.2f",
		s.Expertise, s.Workload, s.Performance, s.Speed, s.Total)
}

// RouteResult describes a routing decision.
type RouteResult struct {
	AgentID   string
	Score     float64
	Rationale string
	// Ranking holds every eligible candidate, best first.
	Ranking []AgentScore
}

// Eligible reports whether agent may receive a new ticket right now.
func Eligible(agent domain.Agent) error {
	if !agent.IsActive || !agent.IsAvailable {
		return ErrAgentUnavailable
	}
	if agent.CurrentTicketCount >= agent.MaxTickets {
		return ErrAgentAtCapacity
	}
	return nil
}

// ScoreAgent scores one candidate for ticket. The boolean is false when the
// candidate is excluded outright by availability or the capacity gate.
func ScoreAgent(ticket *domain.Ticket, agent domain.Agent) (AgentScore, bool) {
	if Eligible(agent) != nil {
		return AgentScore{}, false
	}

	score := AgentScore{AgentID: agent.ID}

	switch {
	case ticket.HasCategory() && agent.HasExpertise(string(ticket.Category)):
		score.Expertise = expertiseMatchScore
	case agent.HasExpertise(generalExpertiseTag):
		score.Expertise = expertiseGeneralScore
	case !ticket.HasCategory():
		score.Expertise = expertiseUnknownScore
	}

	utilization := 1.0
	if agent.MaxTickets > 0 {
		utilization = float64(agent.CurrentTicketCount) / float64(agent.MaxTickets)
	}
	score.Workload = (1 - utilization) * workloadWeight

	if agent.SatisfactionScore > 0 {
		score.Performance = agent.SatisfactionScore / domain.MaxSatisfactionScore * performanceWeight
	} else {
		score.Performance = performanceUnrated
	}

	if agent.AvgResolutionTimeHours > 0 {
		score.Speed = math.Max(0, (speedHorizonHours-agent.AvgResolutionTimeHours)/speedHorizonHours*speedWeight)
	} else {
		score.Speed = speedUnrated
	}

	score.Total = score.Expertise + score.Workload + score.Performance + score.Speed
	return score, true
}

// RankAgents scores the eligible candidates and orders them by descending
// score. Equal scores keep candidate-pool order, so callers must pass the
// pool in a reproducible order.
func RankAgents(ticket *domain.Ticket, candidates []domain.Agent) []AgentScore {
	ranking := make([]AgentScore, 0, len(candidates))
	for i, agent := range candidates {
		score, ok := ScoreAgent(ticket, agent)
		if !ok {
			continue
		}
		score.Position = i
		ranking = append(ranking, score)
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Total > ranking[j].Total
	})
	return ranking
}

// SelectAgent picks the best candidate without touching the ticket.
func SelectAgent(ticket *domain.Ticket, candidates []domain.Agent) (RouteResult, error) {
	ranking := RankAgents(ticket, candidates)
	if len(ranking) == 0 || ranking[0].Total <= 0 {
		return RouteResult{Ranking: ranking}, ErrNoEligibleAgent
	}
	best := ranking[0]
	return RouteResult{
		AgentID:   best.AgentID,
		Score:     best.Total,
		Rationale: best.Rationale(),
		Ranking:   ranking,
	}, nil
}

// Router selects agents and applies assignments through the lifecycle.
type Router struct {
	lifecycle *Lifecycle
}

// NewRouter builds a router that drives transitions through lifecycle.
func NewRouter(lifecycle *Lifecycle) *Router {
	return &Router{lifecycle: lifecycle}
}

// Routable reports whether a ticket in status may be routed. Only OPEN and
// IN_PROGRESS tickets move to IN_PROGRESS through an assignment, whatever
// the lifecycle mode.
func Routable(status domain.TicketStatus) error {
	if status != domain.TicketStatusOpen && status != domain.TicketStatusInProgress {
		return fmt.Errorf("%w: status %s", ErrTicketNotRoutable, status)
	}
	return nil
}

// Assign re-validates the ticket status and agent eligibility and records
// the assignment on ticket, moving it to IN_PROGRESS. Stores call this inside
// the critical section that commits the assignment, with a freshly read
// ticket and agent.
func (r *Router) Assign(ticket *domain.Ticket, agent domain.Agent) error {
	if err := Routable(ticket.Status); err != nil {
		return err
	}
	if err := Eligible(agent); err != nil {
		return err
	}
	if err := r.lifecycle.Transition(ticket, domain.TicketStatusInProgress); err != nil {
		return err
	}
	id := agent.ID
	ticket.AssignedAgentID = &id
	return nil
}

// AssignUnowned is Assign for tickets that must still be unassigned at
// commit time, as in the re-route sweep.
func (r *Router) AssignUnowned(ticket *domain.Ticket, agent domain.Agent) error {
	if ticket.AssignedAgentID != nil {
		return ErrTicketAlreadyAssigned
	}
	return r.Assign(ticket, agent)
}

// RouteTicket selects the best candidate and assigns it to ticket. On
// ErrNoEligibleAgent the ticket is left untouched.
func (r *Router) RouteTicket(ticket *domain.Ticket, candidates []domain.Agent) (RouteResult, error) {
	if err := Routable(ticket.Status); err != nil {
		return RouteResult{}, err
	}
	result, err := SelectAgent(ticket, candidates)
	if err != nil {
		return result, err
	}
	if err := r.Assign(ticket, candidates[result.Ranking[0].Position]); err != nil {
		return result, err
	}
	return result, nil
}
