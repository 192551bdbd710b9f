package triage

import (
	"fmt"
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// LifecycleMode selects how status edits are guarded.
type LifecycleMode int

const (
	// Permissive accepts every transition between known states.
	Permissive LifecycleMode = iota
	// Strict rejects transitions outside strictTransitions.
	Strict
)

func (m LifecycleMode) String() string {
	if m == Strict {
		return "strict"
	}
	return "permissive"
}

// strictTransitions lists, per source state, the allowed targets. Nothing
// leaves CLOSED and nothing returns to OPEN.
var strictTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen: {
		domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed,
	},
	domain.TicketStatusInProgress: {
		domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed,
	},
	domain.TicketStatusResolved: {
		domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed,
	},
	domain.TicketStatusClosed: {
		domain.TicketStatusClosed,
	},
}

// Lifecycle applies status transitions to tickets.
type Lifecycle struct {
	mode LifecycleMode
	now  func() time.Time
}

// NewLifecycle builds a state machine. A nil clock defaults to time.Now.
func NewLifecycle(mode LifecycleMode, now func() time.Time) *Lifecycle {
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{mode: mode, now: now}
}

// Mode returns the configured guard mode.
func (l *Lifecycle) Mode() LifecycleMode {
	return l.mode
}

// Allowed reports whether from -> to passes the configured guard.
func (l *Lifecycle) Allowed(from, to domain.TicketStatus) bool {
	if !to.Valid() {
		return false
	}
	if l.mode == Permissive {
		return true
	}
	for _, candidate := range strictTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Transition moves ticket to target. Entering RESOLVED stamps ResolvedAt
// only when it is still unset.
func (l *Lifecycle) Transition(ticket *domain.Ticket, target domain.TicketStatus) error {
	if !target.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, target)
	}
	if !l.Allowed(ticket.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ticket.Status, target)
	}
	now := l.now()
	if target == domain.TicketStatusResolved && ticket.ResolvedAt == nil {
		ticket.ResolvedAt = &now
	}
	ticket.Status = target
	ticket.UpdatedAt = now
	return nil
}
