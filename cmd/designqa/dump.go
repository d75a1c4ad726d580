package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"design-props-rag/internal/app"
	"design-props-rag/internal/table"
)

var dumpFlags struct {
	format  string
	refresh bool
}

var dumpCmd = &cobra.Command{
	Use:   "dump <urn>",
	Short: "Print the property table extracted for a design",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := table.ParseFormat(dumpFlags.format)
		if err != nil {
			return err
		}
		a, err := app.Build(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		tbl, err := a.Assistant.BuildTable(cmd.Context(), args[0], "", dumpFlags.refresh)
		if err != nil {
			return fmt.Errorf("failed to extract properties: %w", err)
		}
		return table.Render(cmd.OutOrStdout(), tbl, format)
	},
}

func init() {
	dumpCmd.Flags().StringVar(&dumpFlags.format, "format", "csv", "Output format: csv, ascii or markdown")
	dumpCmd.Flags().BoolVar(&dumpFlags.refresh, "refresh", false, "Ignore the stored table and extract again")
}
