package triage

import "github.com/spec-kit/triage-service/internal/domain"

// RoutingMetrics summarizes routing outcomes over a ticket set.
type RoutingMetrics struct {
	TotalAssigned               int     `json:"total_assigned"`
	AvgAssignmentLatencyMinutes float64 `json:"avg_assignment_latency_minutes"`
	ResolutionRatePercent       float64 `json:"resolution_rate_percent"`
}

// ComputeRoutingMetrics aggregates over the assigned tickets in tickets.
// Latency is UpdatedAt minus CreatedAt; tickets missing either timestamp are
// left out of the latency mean but still count as assigned.
func ComputeRoutingMetrics(tickets []domain.Ticket) RoutingMetrics {
	var (
		assigned   int
		resolved   int
		latencySum float64
		latencyN   int
	)
	for i := range tickets {
		t := &tickets[i]
		if t.AssignedAgentID == nil {
			continue
		}
		assigned++
		if t.Status == domain.TicketStatusResolved {
			resolved++
		}
		if t.CreatedAt.IsZero() || t.UpdatedAt.IsZero() {
			continue
		}
		latencySum += t.UpdatedAt.Sub(t.CreatedAt).Minutes()
		latencyN++
	}

	if assigned == 0 {
		return RoutingMetrics{}
	}
	metrics := RoutingMetrics{
		TotalAssigned:         assigned,
		ResolutionRatePercent: round2(100 * float64(resolved) / float64(assigned)),
	}
	if latencyN > 0 {
		metrics.AvgAssignmentLatencyMinutes = round2(latencySum / float64(latencyN))
	}
	return metrics
}
