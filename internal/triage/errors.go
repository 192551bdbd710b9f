package triage

import "errors"

var (
	// ErrNoEligibleAgent is returned when no candidate is active, available,
	// under capacity and scores above zero.
	ErrNoEligibleAgent = errors.New("no eligible agent")
	// ErrInvalidTransition is returned in strict lifecycle mode only.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnknownStatus is returned for a target status outside the lifecycle.
	ErrUnknownStatus = errors.New("unknown ticket status")
	// ErrAgentUnavailable is returned when an assignment targets an agent
	// that is inactive or unavailable.
	ErrAgentUnavailable = errors.New("agent is not active and available")
	// ErrAgentAtCapacity is returned when an assignment targets an agent whose
	// live ticket count has reached its capacity.
	ErrAgentAtCapacity = errors.New("agent is at capacity")
	// ErrTicketNotRoutable is returned when an assignment targets a ticket
	// that is neither OPEN nor IN_PROGRESS.
	ErrTicketNotRoutable = errors.New("ticket is not open for routing")
	// ErrTicketAlreadyAssigned is returned by sweep commits when the ticket
	// picked up an assignee after it was listed.
	ErrTicketAlreadyAssigned = errors.New("ticket is already assigned")
)
