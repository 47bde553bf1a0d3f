package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/index"
	"github.com/IshaanNene/webrag/internal/observability"
	"github.com/IshaanNene/webrag/internal/pipeline"
)

var (
	ingestDepth        int
	ingestDelay        string
	ingestNamespace    string
	ingestRenderer     string
	ingestChunkSize    int
	ingestChunkOverlap int
	ingestMaxPages     int
	ingestDryRun       bool
	ingestMetricsPort  int
	ingestReport       string
)

// ingestCmd creates the "ingest" subcommand.
func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [url]",
		Short: "Crawl a site and index its content",
		Long: `Crawl every page of the seed URL's domain up to --depth links away,
extract text, split it into chunks and index them.

With --dry-run the chunks are written to JSONL files under the store's
output directory without calling the embedding provider.`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().IntVarP(&ingestDepth, "depth", "d", -1, "maximum link depth from the seed (-1 = config default)")
	cmd.Flags().StringVar(&ingestDelay, "delay", "", "politeness delay between page loads")
	cmd.Flags().StringVarP(&ingestNamespace, "namespace", "n", "", "vector store namespace")
	cmd.Flags().StringVarP(&ingestRenderer, "renderer", "r", "", "page renderer: browser, static")
	cmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "maximum chunk length in characters")
	cmd.Flags().IntVar(&ingestChunkOverlap, "chunk-overlap", -1, "characters shared by adjacent chunks")
	cmd.Flags().IntVarP(&ingestMaxPages, "max-pages", "m", 0, "maximum pages to visit (0 = unlimited)")
	cmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "write chunks to JSONL without embedding")
	cmd.Flags().IntVar(&ingestMetricsPort, "metrics-port", 0, "serve Prometheus metrics on this port while ingesting")
	cmd.Flags().StringVar(&ingestReport, "report", "", "write a Markdown summary to this file")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	seed := args[0]
	if err := config.ValidateURL(seed); err != nil {
		return fmt.Errorf("invalid URL %q: %w", seed, err)
	}

	cfg, err := loadConfig(applyIngestOverrides)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled && ingestMetricsPort > 0 {
		if err := metrics.StartServer(ingestMetricsPort, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	store, err := index.NewStore(cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	var bar *progressbar.ProgressBar
	ingestor, err := pipeline.NewIngestor(cfg, store, logger,
		pipeline.WithIngestMetrics(metrics),
		pipeline.WithDryRun(ingestDryRun),
		pipeline.WithStageProgress(func(stage pipeline.Stage, fraction float64) {
			logger.Info("stage", "stage", stage, "progress", fraction)
		}),
		pipeline.WithIndexProgress(func(done, total int) {
			if bar == nil {
				bar = newProgressBar(total, "indexing")
			}
			bar.Set(done)
		}),
	)
	if err != nil {
		return err
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🔎 Ingesting %s\n", seed)
	fmt.Printf("   Renderer:  %s\n", cfg.Renderer.Type)
	fmt.Printf("   Depth:     %d\n", cfg.Crawl.MaxDepth)
	fmt.Printf("   Store:     %s\n", cfg.Store.Type)

	report, err := ingestor.Run(ctx, seed, ingestNamespace)
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("ingestion interrupted")
		}
		return err
	}

	fmt.Printf("\n✅ Ingestion complete in %s\n", report.Duration.Round(time.Millisecond))
	fmt.Printf("   Pages:     %d visited, %d failed, %d timed out\n",
		report.Crawl.PagesVisited, report.Crawl.RenderErrors, report.Crawl.RenderTimeouts)
	fmt.Printf("   Documents: %d kept, %d dropped\n", report.Documents, report.Dropped)
	fmt.Printf("   Chunks:    %d produced, %d stored\n", report.Chunks, report.Indexed)
	fmt.Printf("   Namespace: %s\n", report.Namespace)
	if report.DryRun {
		fmt.Printf("   Dry run:   no embeddings requested\n")
	}

	if ingestReport != "" {
		if err := writeReport(ingestReport, report); err != nil {
			return err
		}
		fmt.Printf("   Report:    %s\n", ingestReport)
	}
	return nil
}

func writeReport(path string, report *pipeline.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	if err := pipeline.WriteMarkdown(f, report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// applyIngestOverrides applies command-line flag values to the config.
func applyIngestOverrides(cfg *config.Config) {
	if ingestDepth >= 0 {
		cfg.Crawl.MaxDepth = ingestDepth
	}
	if ingestDelay != "" {
		d, err := time.ParseDuration(ingestDelay)
		if err == nil {
			cfg.Crawl.Delay = d
		}
	}
	if ingestRenderer != "" {
		cfg.Renderer.Type = ingestRenderer
	}
	if ingestChunkSize > 0 {
		cfg.Chunk.ChunkSize = ingestChunkSize
	}
	if ingestChunkOverlap >= 0 {
		cfg.Chunk.ChunkOverlap = ingestChunkOverlap
	}
	if ingestMaxPages > 0 {
		cfg.Crawl.MaxPages = ingestMaxPages
	}
	if ingestDryRun {
		cfg.Store.Type = "jsonl"
	}
}

func newProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
