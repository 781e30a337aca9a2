package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/lexsearch/internal/inbox"
	"github.com/hyperjump/lexsearch/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API and the ingestion worker pool. When ingest.inbox_dir is
configured, files dropped into it are ingested automatically.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.pipeline.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.Ingest.InboxDir != "" {
		in := inbox.New(cfg.Ingest.InboxDir, cfg.Ingest.AllowedExtensions, a.pipeline, inbox.WithLogger(logger))
		if err := in.Start(gctx); err != nil {
			return err
		}
		defer in.Stop()
	}

	srv := server.NewServer(a.engine, a.pipeline, a.storage, a.index, cfg, logger)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		a.pipeline.Close()
		return srv.Stop(shutdownCtx)
	})
	return g.Wait()
}
