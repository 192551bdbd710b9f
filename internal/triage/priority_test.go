package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/triage-service/internal/domain"
)

func TestDerivePriorityBoundaries(t *testing.T) {
	tests := []struct {
		urgency float64
		want    domain.TicketPriority
	}{
		{0, domain.TicketPriorityLow},
		{0.3, domain.TicketPriorityLow},
		{0.30001, domain.TicketPriorityMedium},
		{0.6, domain.TicketPriorityMedium},
		{0.60001, domain.TicketPriorityHigh},
		{0.8, domain.TicketPriorityHigh},
		{0.80001, domain.TicketPriorityUrgent},
		{1, domain.TicketPriorityUrgent},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DerivePriority(tt.urgency), "urgency %v", tt.urgency)
	}
}

func TestDerivePriorityMonotone(t *testing.T) {
	rank := map[domain.TicketPriority]int{
		domain.TicketPriorityLow:    0,
		domain.TicketPriorityMedium: 1,
		domain.TicketPriorityHigh:   2,
		domain.TicketPriorityUrgent: 3,
	}
	prev := -1
	for i := 0; i <= 1000; i++ {
		got := rank[DerivePriority(float64(i) / 1000)]
		assert.GreaterOrEqual(t, got, prev, "urgency %v", float64(i)/1000)
		prev = got
	}
}
