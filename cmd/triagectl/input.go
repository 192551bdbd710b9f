package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/triage-service/internal/domain"
)

// agentRecord is one agent in an agents file. JSON files parse as YAML.
type agentRecord struct {
	ID                     string   `yaml:"id"`
	Name                   string   `yaml:"name"`
	Email                  string   `yaml:"email"`
	Expertise              tagList  `yaml:"expertise"`
	MaxTickets             *int     `yaml:"max_tickets"`
	CurrentTicketCount     int      `yaml:"current_ticket_count"`
	IsActive               *bool    `yaml:"is_active"`
	IsAvailable            *bool    `yaml:"is_available"`
	AvgResolutionTimeHours float64  `yaml:"avg_resolution_time_hours"`
	SatisfactionScore      float64  `yaml:"satisfaction_score"`
}

// tagList accepts either a sequence of tags or one comma separated string,
// the form agent rosters exported from spreadsheets use.
type tagList []string

func (l *tagList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var raw string
		if err := node.Decode(&raw); err != nil {
			return err
		}
		*l = domain.ParseExpertise(raw)
		return nil
	}
	var tags []string
	if err := node.Decode(&tags); err != nil {
		return err
	}
	*l = domain.NormalizeExpertise(tags)
	return nil
}

// ticketRecord is one ticket in a ticket export.
type ticketRecord struct {
	ID              string `yaml:"id"`
	Status          string `yaml:"status"`
	AssignedAgentID string `yaml:"assigned_agent_id"`
	CreatedAt       string `yaml:"created_at"`
	UpdatedAt       string `yaml:"updated_at"`
}

func loadAgents(path string) ([]domain.Agent, error) {
	var records []agentRecord
	if err := decodeFile(path, &records); err != nil {
		return nil, err
	}
	agents := make([]domain.Agent, 0, len(records))
	for i, rec := range records {
		id := rec.ID
		if id == "" {
			id = fmt.Sprintf("agent-%d", i+1)
		}
		agent := domain.Agent{
			ID:                     id,
			Name:                   rec.Name,
			Email:                  rec.Email,
			Expertise:              rec.Expertise,
			MaxTickets:             domain.DefaultMaxTickets,
			CurrentTicketCount:     rec.CurrentTicketCount,
			IsActive:               true,
			IsAvailable:            true,
			AvgResolutionTimeHours: rec.AvgResolutionTimeHours,
			SatisfactionScore:      rec.SatisfactionScore,
		}
		if rec.MaxTickets != nil {
			agent.MaxTickets = *rec.MaxTickets
		}
		if rec.IsActive != nil {
			agent.IsActive = *rec.IsActive
		}
		if rec.IsAvailable != nil {
			agent.IsAvailable = *rec.IsAvailable
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

func loadTickets(path string) ([]domain.Ticket, error) {
	var records []ticketRecord
	if err := decodeFile(path, &records); err != nil {
		return nil, err
	}
	tickets := make([]domain.Ticket, 0, len(records))
	for i, rec := range records {
		status := domain.TicketStatus(strings.ToUpper(strings.TrimSpace(rec.Status)))
		if !status.Valid() {
			return nil, fmt.Errorf("ticket %d: unknown status %q", i+1, rec.Status)
		}
		ticket := domain.Ticket{ID: rec.ID, Status: status}
		if rec.AssignedAgentID != "" {
			agentID := rec.AssignedAgentID
			ticket.AssignedAgentID = &agentID
		}
		var err error
		if ticket.CreatedAt, err = parseTimestamp(rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("ticket %d created_at: %w", i+1, err)
		}
		if ticket.UpdatedAt, err = parseTimestamp(rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ticket %d updated_at: %w", i+1, err)
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func decodeFile(path string, out any) error {
	if path == "" {
		return fmt.Errorf("no input file given")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// readText joins args, or reads stdin when no args are given or the only
// arg is "-".
func readText(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	raw, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("no text given")
	}
	return text, nil
}
