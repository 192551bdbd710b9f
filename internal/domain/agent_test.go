package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgentNormalizes(t *testing.T) {
	agent, err := NewAgent(AgentInput{
		Name:       "  Dana ",
		Email:      " Dana@Example.COM ",
		Expertise:  []string{" Billing", "technical ", "BILLING", ""},
		MaxTickets: 5,
		IsActive:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Dana", agent.Name)
	assert.Equal(t, "dana@example.com", agent.Email)
	assert.Equal(t, []string{"billing", "technical"}, agent.Expertise)
	assert.True(t, agent.HasExpertise("Technical"))
	assert.False(t, agent.HasExpertise("account"))
}

func TestNewAgentValidation(t *testing.T) {
	valid := AgentInput{Name: "n", Email: "e@x.io", MaxTickets: 1}
	tests := []struct {
		name   string
		mutate func(*AgentInput)
		want   error
	}{
		{"name", func(in *AgentInput) { in.Name = " " }, ErrAgentNameRequired},
		{"email", func(in *AgentInput) { in.Email = "" }, ErrAgentEmailRequired},
		{"capacity", func(in *AgentInput) { in.MaxTickets = -1 }, ErrAgentCapacityNegative},
		{"satisfaction high", func(in *AgentInput) { in.SatisfactionScore = 5.1 }, ErrAgentSatisfaction},
		{"satisfaction low", func(in *AgentInput) { in.SatisfactionScore = -0.1 }, ErrAgentSatisfaction},
		{"resolution", func(in *AgentInput) { in.AvgResolutionTimeHours = -2 }, ErrAgentResolutionTime},
		{"handled", func(in *AgentInput) { in.TotalHandled = -1 }, ErrAgentCounterNegative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := NewAgent(in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAgentFreeSlots(t *testing.T) {
	assert.Equal(t, 3, Agent{MaxTickets: 5, CurrentTicketCount: 2}.FreeSlots())
	assert.Equal(t, 0, Agent{MaxTickets: 2, CurrentTicketCount: 4}.FreeSlots())
}

func TestAgentRecordResolution(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	agent := Agent{TotalHandled: 1, AvgResolutionTimeHours: 4}

	agent.RecordResolution(2, at)
	assert.Equal(t, 2, agent.TotalHandled)
	assert.InDelta(t, 3.0, agent.AvgResolutionTimeHours, 1e-9)
	assert.Equal(t, at, agent.UpdatedAt)

	agent.RecordResolution(-5, at)
	assert.Equal(t, 3, agent.TotalHandled)
	assert.InDelta(t, 2.0, agent.AvgResolutionTimeHours, 1e-9)
}

func TestParseExpertise(t *testing.T) {
	assert.Equal(t, []string{"billing", "general"}, ParseExpertise("Billing, general ,,billing"))
	assert.Empty(t, ParseExpertise(""))
}

func TestTicketText(t *testing.T) {
	assert.Equal(t, "subject\nbody", (&Ticket{Subject: "subject", Description: "body"}).Text())
	assert.Equal(t, "body", (&Ticket{Description: "body"}).Text())
	assert.Equal(t, "subject", (&Ticket{Subject: "subject"}).Text())
}
