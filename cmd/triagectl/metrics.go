package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/spec-kit/triage-service/internal/triage"
)

func newMetricsCmd(root *rootOptions) *cobra.Command {
	var ticketsFile string
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Compute routing metrics over a ticket export",
		Long: `Aggregate routing metrics over a YAML or JSON list of tickets with
status, assigned_agent_id, created_at and updated_at (RFC 3339).

Example:
  triagectl metrics --tickets export.json -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tickets, err := loadTickets(ticketsFile)
			if err != nil {
				return err
			}
			metrics := triage.ComputeRoutingMetrics(tickets)
			return render(cmd.OutOrStdout(), root.output, metrics, func(w io.Writer) error {
				fmt.Fprintf(w, "total assigned:      %d\n", metrics.TotalAssigned)
				fmt.Fprintf(w, "avg latency (min):   %.2f\n", metrics.AvgAssignmentLatencyMinutes)
				_, err := fmt.Fprintf(w, "resolution rate (%%): %.2f\n", metrics.ResolutionRatePercent)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&ticketsFile, "tickets", "", "Ticket export (YAML or JSON list)")
	_ = cmd.MarkFlagRequired("tickets")
	return cmd
}
