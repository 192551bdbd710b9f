package triage

import "github.com/spec-kit/triage-service/internal/domain"

const (
	urgentThreshold = 0.8
	highThreshold   = 0.6
	mediumThreshold = 0.3
)

// DerivePriority buckets an urgency score. Thresholds are strict, so a score
// sitting exactly on a boundary lands in the lower bucket.
func DerivePriority(urgency float64) domain.TicketPriority {
	switch {
	case urgency > urgentThreshold:
		return domain.TicketPriorityUrgent
	case urgency > highThreshold:
		return domain.TicketPriorityHigh
	case urgency > mediumThreshold:
		return domain.TicketPriorityMedium
	default:
		return domain.TicketPriorityLow
	}
}
