package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/triage"
)

type signalsReport struct {
	Category       domain.Category             `json:"category" yaml:"category"`
	Confidence     float64                     `json:"confidence" yaml:"confidence"`
	Distribution   map[domain.Category]float64 `json:"distribution" yaml:"distribution"`
	Sentiment      domain.Sentiment            `json:"sentiment" yaml:"sentiment"`
	SentimentScore float64                     `json:"sentiment_score" yaml:"sentiment_score"`
	UrgencyScore   float64                     `json:"urgency_score" yaml:"urgency_score"`
	Priority       domain.TicketPriority       `json:"priority" yaml:"priority"`
	Extended       bool                        `json:"extended" yaml:"extended"`
}

func newClassifyCmd(root *rootOptions) *cobra.Command {
	var extended bool
	cmd := &cobra.Command{
		Use:   "classify [text...]",
		Short: "Extract category, sentiment, urgency and priority",
		Long: `Run the signal extractor over a ticket text. The text is read from the
arguments, or from stdin when none are given.

Example:
  triagectl classify "I was charged twice, please refund"
  echo "app crashes on login!!!" | triagectl classify --extended -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			signals := triage.Extract(text, extended)
			report := signalsReport{
				Category:       signals.Category,
				Confidence:     signals.Confidence,
				Distribution:   signals.Distribution,
				Sentiment:      signals.Sentiment,
				SentimentScore: signals.SentimentScore,
				UrgencyScore:   signals.UrgencyScore,
				Priority:       signals.Priority,
				Extended:       extended,
			}
			return render(cmd.OutOrStdout(), root.output, report, func(w io.Writer) error {
				return printSignals(w, report)
			})
		},
	}
	cmd.Flags().BoolVar(&extended, "extended", false, "Enable the extended urgency heuristics")
	return cmd
}

func printSignals(w io.Writer, r signalsReport) error {
	fmt.Fprintf(w, "category:   %s (confidence %.2f)\n", r.Category, r.Confidence)
	fmt.Fprintf(w, "sentiment:  %s (%.2f)\n", r.Sentiment, r.SentimentScore)
	fmt.Fprintf(w, "urgency:    %.2f\n", r.UrgencyScore)
	fmt.Fprintf(w, "priority:   %s\n", r.Priority)

	categories := make([]domain.Category, 0, len(r.Distribution))
	for c := range r.Distribution {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	fmt.Fprintln(w, "distribution:")
	for _, c := range categories {
		if _, err := fmt.Fprintf(w, "  %-16s %.2f\n", c, r.Distribution[c]); err != nil {
			return err
		}
	}
	return nil
}

type priorityReport struct {
	UrgencyScore float64               `json:"urgency_score" yaml:"urgency_score"`
	Priority     domain.TicketPriority `json:"priority" yaml:"priority"`
}

func newPriorityCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "priority <urgency>",
		Short: "Map an urgency score in [0,1] to a priority bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			urgency, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("parse urgency: %w", err)
			}
			if urgency < 0 || urgency > 1 {
				return fmt.Errorf("urgency %.2f outside [0,1]", urgency)
			}
			report := priorityReport{UrgencyScore: urgency, Priority: triage.DerivePriority(urgency)}
			return render(cmd.OutOrStdout(), root.output, report, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, report.Priority)
				return err
			})
		},
	}
}
