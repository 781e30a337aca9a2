package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperjump/lexsearch/internal/cli"
	"github.com/hyperjump/lexsearch/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show document, chunk and index counts",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	docs, err := a.storage.CountDocuments(ctx)
	if err != nil {
		return err
	}
	byStatus, err := a.storage.CountDocumentsByStatus(ctx)
	if err != nil {
		return err
	}
	chunks, err := a.storage.CountChunks(ctx)
	if err != nil {
		return err
	}
	status := &cli.Status{
		Documents:       docs,
		ByStatus:        byStatus,
		Chunks:          chunks,
		VectorIndexSize: a.index.Size(),
		VectorBackend:   cfg.Vector.Backend,
		Embedding:       cfg.Embedding.Provider,
		Dimensions:      cfg.Embedding.Dimensions,
		DatabasePath:    cfg.Storage.DatabasePath,
	}
	if n, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath, cfg.Storage.VectorIndexPath); err == nil {
		status.DiskUsageBytes = &n
	}
	return cli.WriteStatus(cmd.OutOrStdout(), status, outputFormat())
}
