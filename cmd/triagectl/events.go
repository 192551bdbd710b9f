package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/persistence"
)

func newEventsCmd() *cobra.Command {
	var eventType string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail ticket events published on the Redis relay",
		Long: `Subscribe to REDIS_EVENTS_CHANNEL and print each event as one JSON line
until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.Redis.Enabled {
				return fmt.Errorf("redis is disabled (REDIS_ENABLED=false)")
			}
			logger, err := observability.NewLogger(cfg.Logger, "triagectl")
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
			defer rdb.Close()

			logger.Info("tailing events", zap.String("channel", cfg.Redis.EventsChannel))
			enc := json.NewEncoder(cmd.OutOrStdout())
			relay := rdb.Relay(logger)
			return relay.Listen(ctx, func(event events.Event) {
				if eventType != "" && string(event.Type) != eventType {
					return
				}
				if err := enc.Encode(event); err != nil {
					logger.Warn("write event", zap.Error(err))
				}
			})
		},
	}
	cmd.Flags().StringVar(&eventType, "type", "", "Only print events of this type, e.g. ticket_assigned")
	return cmd
}

