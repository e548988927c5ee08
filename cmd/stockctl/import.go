package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/stockflow/stockflow-backend/internal/inventory/importer"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
)

func newImportCmd() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import products and quantities from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rows, failures, err := importer.DecodeRows(f)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.reconciler.ImportBatch(cmd.Context(), tenantID, rows)
			if err != nil {
				return err
			}
			res.AddFailures(failures)
			return printResult(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "owning tenant")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newImportHistoryCmd() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "import-history <file.csv>",
		Short: "Replay a recorded transaction history from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rows, failures, err := importer.DecodeHistory(f)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.reconciler.ImportHistory(cmd.Context(), tenantID, rows)
			if err != nil {
				return err
			}
			res.AddFailures(failures)
			return printResult(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "owning tenant")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func printResult(w io.Writer, res *service.BatchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
