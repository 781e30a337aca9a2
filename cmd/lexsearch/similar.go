package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/lexsearch/internal/cli"
)

var similarLimit int

var similarCmd = &cobra.Command{
	Use:   "similar [document-id]",
	Short: "Find documents similar to a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimilar,
}

func init() {
	similarCmd.Flags().IntVarP(&similarLimit, "limit", "n", 10, "maximum number of documents")
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	similar, err := a.engine.FindSimilar(cmd.Context(), args[0], similarLimit)
	if err != nil {
		return fmt.Errorf("similar documents: %w", err)
	}
	return cli.WriteSimilar(cmd.OutOrStdout(), args[0], similar, outputFormat())
}
