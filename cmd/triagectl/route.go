package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/triage"
)

type candidateReport struct {
	AgentID     string  `json:"agent_id" yaml:"agent_id"`
	Expertise   float64 `json:"expertise" yaml:"expertise"`
	Workload    float64 `json:"workload" yaml:"workload"`
	Performance float64 `json:"performance" yaml:"performance"`
	Speed       float64 `json:"speed" yaml:"speed"`
	Total       float64 `json:"total" yaml:"total"`
}

type routeReport struct {
	Category  domain.Category   `json:"category" yaml:"category"`
	AgentID   string            `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	Score     float64           `json:"score" yaml:"score"`
	Rationale string            `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	Ranking   []candidateReport `json:"ranking" yaml:"ranking"`
	Excluded  map[string]string `json:"excluded,omitempty" yaml:"excluded,omitempty"`
}

func newRouteCmd(root *rootOptions) *cobra.Command {
	var (
		agentsFile string
		category   string
	)
	cmd := &cobra.Command{
		Use:   "route [text...]",
		Short: "Rank agents for a ticket without assigning it",
		Long: `Score every agent in an agents file (YAML or JSON list) against a ticket
and print the ranking. The ticket category comes from --category, or is
classified from the text.

Example:
  triagectl route --agents agents.yaml "refund for the duplicate invoice"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			agents, err := loadAgents(agentsFile)
			if err != nil {
				return err
			}
			ticket := &domain.Ticket{Status: domain.TicketStatusOpen}
			if category != "" {
				ticket.Category = domain.Category(strings.ToLower(strings.TrimSpace(category)))
				if !ticket.Category.Valid() {
					return fmt.Errorf("unknown category %q", category)
				}
			} else {
				text, err := readText(args, cmd.InOrStdin())
				if err != nil {
					return err
				}
				ticket.Category = triage.ClassifySignal(text).Category
			}

			report := routeReport{Category: ticket.Category, Ranking: []candidateReport{}}
			for _, agent := range agents {
				if err := triage.Eligible(agent); err != nil {
					if report.Excluded == nil {
						report.Excluded = map[string]string{}
					}
					report.Excluded[agent.ID] = err.Error()
				}
			}
			result, err := triage.SelectAgent(ticket, agents)
			if err != nil && !errors.Is(err, triage.ErrNoEligibleAgent) {
				return err
			}
			report.AgentID = result.AgentID
			report.Score = result.Score
			report.Rationale = result.Rationale
			for _, score := range result.Ranking {
				report.Ranking = append(report.Ranking, candidateReport{
					AgentID:     score.AgentID,
					Expertise:   score.Expertise,
					Workload:    score.Workload,
					Performance: score.Performance,
					Speed:       score.Speed,
					Total:       score.Total,
				})
			}
			return render(cmd.OutOrStdout(), root.output, report, func(w io.Writer) error {
				return printRoute(w, report)
			})
		},
	}
	cmd.Flags().StringVar(&agentsFile, "agents", "", "Agents file (YAML or JSON list)")
	cmd.Flags().StringVar(&category, "category", "", "Ticket category; classified from the text when empty")
	_ = cmd.MarkFlagRequired("agents")
	return cmd
}

func printRoute(w io.Writer, r routeReport) error {
	fmt.Fprintf(w, "category: %s\n", r.Category)
	if r.AgentID == "" {
		fmt.Fprintln(w, "no eligible agent")
	} else {
		fmt.Fprintf(w, "selected: %s (%.2f)\n", r.AgentID, r.Score)
	}
	for i, c := range r.Ranking {
		fmt.Fprintf(w, "%2d. %-20s total=%6.2f expertise=%5.2f workload=%5.2f performance=%5.2f speed=%5.2f\n",
			i+1, c.AgentID, c.Total, c.Expertise, c.Workload, c.Performance, c.Speed)
	}
	for id, reason := range r.Excluded {
		if _, err := fmt.Fprintf(w, "    %-20s excluded: %s\n", id, reason); err != nil {
			return err
		}
	}
	return nil
}
