package main

import (
	"github.com/spf13/cobra"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	output string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "triagectl",
		Short: "Ticket triage toolkit",
		Long: `triagectl exposes the triage engine without a running server.

Heuristics:
  classify     Category, sentiment, urgency and priority for a text
  priority     Priority bucket for an urgency score
  route        Rank agents from a file against a ticket text
  metrics      Routing metrics over a ticket export

Operations:
  token        Mint a bearer token for an agent
  events       Tail ticket events from the Redis relay`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "Output format (text, json, yaml)")

	cmd.AddCommand(
		newClassifyCmd(opts),
		newPriorityCmd(opts),
		newRouteCmd(opts),
		newMetricsCmd(opts),
		newTokenCmd(opts),
		newEventsCmd(),
	)
	return cmd
}
