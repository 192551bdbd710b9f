package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AgentRole enumerates operator roles carried in bearer tokens.
type AgentRole string

const (
	AgentRoleAgent AgentRole = "AGENT"
	AgentRoleAdmin AgentRole = "ADMIN"
)

// Valid reports whether r is a known role.
func (r AgentRole) Valid() bool {
	return r == AgentRoleAgent || r == AgentRoleAdmin
}

// MaxSatisfactionScore is the top of the customer satisfaction scale.
const MaxSatisfactionScore = 5.0

// Agent models a human support agent eligible for routing.
//
// CurrentTicketCount is derived by the store at read time from the tickets
// assigned to the agent whose status is not CLOSED. It is never persisted.
type Agent struct {
	ID                     string
	Name                   string
	Email                  string
	Expertise              []string
	MaxTickets             int
	IsActive               bool
	IsAvailable            bool
	CurrentTicketCount     int
	TotalHandled           int
	AvgResolutionTimeHours float64
	SatisfactionScore      float64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// AgentInput carries the caller supplied fields of an agent.
type AgentInput struct {
	Name                   string
	Email                  string
	Expertise              []string
	MaxTickets             int
	IsActive               bool
	IsAvailable            bool
	TotalHandled           int
	AvgResolutionTimeHours float64
	SatisfactionScore      float64
}

// DefaultMaxTickets is applied when an agent is created without a capacity.
const DefaultMaxTickets = 10

var (
	ErrAgentNameRequired     = errors.New("agent name required")
	ErrAgentEmailRequired    = errors.New("agent email required")
	ErrAgentCapacityNegative = errors.New("max tickets must not be negative")
	ErrAgentSatisfaction     = fmt.Errorf("satisfaction score must be within [0,%.0f]", MaxSatisfactionScore)
	ErrAgentResolutionTime   = errors.New("average resolution time must not be negative")
	ErrAgentCounterNegative  = errors.New("ticket counters must not be negative")
)

// NewAgent validates input and returns an Agent with normalized expertise.
func NewAgent(input AgentInput) (Agent, error) {
	agent := Agent{
		Name:                   strings.TrimSpace(input.Name),
		Email:                  strings.ToLower(strings.TrimSpace(input.Email)),
		Expertise:              NormalizeExpertise(input.Expertise),
		MaxTickets:             input.MaxTickets,
		IsActive:               input.IsActive,
		IsAvailable:            input.IsAvailable,
		TotalHandled:           input.TotalHandled,
		AvgResolutionTimeHours: input.AvgResolutionTimeHours,
		SatisfactionScore:      input.SatisfactionScore,
	}
	if err := agent.Validate(); err != nil {
		return Agent{}, err
	}
	return agent, nil
}

// Validate checks the invariants an agent record must satisfy.
func (a Agent) Validate() error {
	switch {
	case a.Name == "":
		return ErrAgentNameRequired
	case a.Email == "":
		return ErrAgentEmailRequired
	case a.MaxTickets < 0:
		return ErrAgentCapacityNegative
	case a.SatisfactionScore < 0 || a.SatisfactionScore > MaxSatisfactionScore:
		return ErrAgentSatisfaction
	case a.AvgResolutionTimeHours < 0:
		return ErrAgentResolutionTime
	case a.TotalHandled < 0 || a.CurrentTicketCount < 0:
		return ErrAgentCounterNegative
	}
	return nil
}

// HasExpertise reports whether tag is in the agent's expertise set.
func (a Agent) HasExpertise(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, e := range a.Expertise {
		if strings.ToLower(strings.TrimSpace(e)) == tag {
			return true
		}
	}
	return false
}

// FreeSlots returns the remaining capacity, never below zero.
func (a Agent) FreeSlots() int {
	if free := a.MaxTickets - a.CurrentTicketCount; free > 0 {
		return free
	}
	return 0
}

// RecordResolution folds one resolved ticket into the handled counter and
// the running mean resolution time. Negative durations count as zero.
func (a *Agent) RecordResolution(hours float64, at time.Time) {
	if hours < 0 {
		hours = 0
	}
	handled := float64(a.TotalHandled)
	a.AvgResolutionTimeHours = (a.AvgResolutionTimeHours*handled + hours) / (handled + 1)
	a.TotalHandled++
	a.UpdatedAt = at
}

// NormalizeExpertise trims, lower-cases and de-duplicates tags, keeping
// first-seen order.
func NormalizeExpertise(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// ParseExpertise splits a comma separated expertise string.
func ParseExpertise(raw string) []string {
	return NormalizeExpertise(strings.Split(raw, ","))
}
