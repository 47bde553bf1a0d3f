package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/webrag/internal/api"
	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/index"
	"github.com/IshaanNene/webrag/internal/jobs"
	"github.com/IshaanNene/webrag/internal/observability"
	"github.com/IshaanNene/webrag/internal/pipeline"
)

var servePort int

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API for background indexing",
		Long: `Start an HTTP server accepting indexing requests.

Endpoints:
  POST /api/index        {"url": "...", "namespace": "..."} → task id
  GET  /api/index/{id}   task status and progress
  GET  /api/index        all tasks
  GET  /api/stats        namespace statistics (?namespace=)
  GET  /api/health       liveness
  GET  /metrics          Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (0 = config default)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(cfg *config.Config) {
		if servePort > 0 {
			cfg.API.Port = servePort
		}
	})
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	store, err := index.NewStore(cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(logger)
	}

	run := func(ctx context.Context, task jobs.Task, progress pipeline.ProgressFunc) (*pipeline.Report, error) {
		ingestor, err := pipeline.NewIngestor(cfg, store, logger,
			pipeline.WithIngestMetrics(metrics),
			pipeline.WithStageProgress(progress),
		)
		if err != nil {
			return nil, err
		}
		return ingestor.Run(ctx, task.URL, task.Namespace)
	}

	manager := jobs.NewManager(run, logger,
		jobs.WithMetrics(metrics),
		jobs.WithRetention(cfg.API.TaskRetention),
	)

	server := api.NewServer(cfg.API, cfg.Indexer.Namespace, manager, store, metrics, logger)
	if err := server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	fmt.Printf("🚀 webrag API listening on :%d\n", cfg.API.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down...", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	if err := manager.Shutdown(ctx); err != nil {
		logger.Warn("tasks still running at exit", "error", err)
	}
	return nil
}
