package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
)

func newTokenCmd() *cobra.Command {
	var (
		who actor.Actor
		ttl time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the ledger API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := httputil.NewAuthenticator(&cfg.JWT).Issue(who, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&who.TenantID, "tenant", "", "owning tenant")
	cmd.Flags().StringVar(&who.ID, "subject", "stockctl", "token subject")
	cmd.Flags().StringVar(&who.Name, "name", "", "actor name recorded on ledger entries")
	cmd.Flags().StringVar(&who.Role, "role", "", "actor role (admin, manager, clerk, viewer); empty is unrestricted")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
