package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
)

func newScanAlertsCmd() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "scan-alerts",
		Short: "Evaluate every product and depot once",
		Long:  `Runs one alert cycle across all tenants, or only the one given with --tenant.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if tenantID != "" {
				created, err := a.alerts.RunAllChecks(cmd.Context(), tenantID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d alerts created\n", len(created))
				return nil
			}

			// Interval is irrelevant for a single cycle
			scheduler := service.NewAlertScheduler(a.alerts, a.store, 0, a.log)
			n := scheduler.RunCycle(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%d alerts created\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "limit the scan to one tenant")
	return cmd
}
