package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/lexsearch/internal/cli"
	"github.com/hyperjump/lexsearch/internal/indexer"
	"github.com/hyperjump/lexsearch/internal/models"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [files or directories...]",
	Short: "Ingest documents into the index",
	Long: `Extracts, tags, chunks and indexes each file. Directories are walked
recursively for files with an allowed extension. Documents that are already
indexed and unchanged are skipped unless --force is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "reprocess documents that are already indexed")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	paths, err := expandPaths(args, cfg.Ingest.AllowedExtensions)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	var (
		jobs     []*indexer.Job
		outcomes []*models.ProcessingOutcome
	)
	for _, p := range paths {
		job, err := a.pipeline.FileJob(ctx, p, cfg.Ingest.AllowedExtensions, ingestForce)
		if err != nil {
			logger.Warn("Skipping file", zap.String("path", p), zap.Error(err))
			outcomes = append(outcomes, &models.ProcessingOutcome{
				DocumentID: p,
				Status:     models.StatusFailed,
				Error:      err.Error(),
			})
			continue
		}
		jobs = append(jobs, job)
	}
	outcomes = append(outcomes, a.pipeline.IngestBatch(ctx, jobs)...)

	if err := cli.WriteOutcomes(cmd.OutOrStdout(), outcomes, outputFormat()); err != nil {
		return err
	}
	for _, o := range outcomes {
		if o.Status == models.StatusFailed {
			return fmt.Errorf("some documents failed to ingest")
		}
	}
	return nil
}

// expandPaths replaces directories with the allowed files beneath them. Files named
// explicitly are kept regardless of extension so the pipeline can report them.
func expandPaths(args []string, allowedExts []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		files, err := indexer.CollectFiles(arg, allowedExts)
		if err != nil {
			return nil, err
		}
		paths = append(paths, files...)
	}
	return paths, nil
}
