package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
)

type tokenReport struct {
	Token     string           `json:"token" yaml:"token"`
	AgentID   string           `json:"agent_id" yaml:"agent_id"`
	Role      domain.AgentRole `json:"role" yaml:"role"`
	ExpiresAt time.Time        `json:"expires_at" yaml:"expires_at"`
}

func newTokenCmd(root *rootOptions) *cobra.Command {
	var (
		role       string
		ttlMinutes int
	)
	cmd := &cobra.Command{
		Use:   "token <agent-id>",
		Short: "Mint a bearer token signed with AUTH_JWT_SECRET",
		Long: `Mint a bearer token for an agent. The signing secret and default
lifetime come from the service configuration (.env or environment).

Example:
  triagectl token 3f2b... --role ADMIN --ttl 30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			agentRole := domain.AgentRole(strings.ToUpper(strings.TrimSpace(role)))
			if !agentRole.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			ttl := cfg.Auth.AccessTokenTTLMinutes
			if ttlMinutes > 0 {
				ttl = ttlMinutes
			}

			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, ttl)
			token, expiresAt, err := tokens.GenerateToken(args[0], agentRole)
			if err != nil {
				return err
			}
			report := tokenReport{Token: token, AgentID: args[0], Role: agentRole, ExpiresAt: expiresAt}
			return render(cmd.OutOrStdout(), root.output, report, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, token)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(domain.AgentRoleAgent), "Role claim (AGENT or ADMIN)")
	cmd.Flags().IntVar(&ttlMinutes, "ttl", 0, "Lifetime in minutes; defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES")
	return cmd
}
