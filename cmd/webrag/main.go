package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/webrag/internal/config"
)

var (
	cfgFile    string
	verbose    bool
	configYAML bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "webrag",
		Short: "webrag — ingest websites for retrieval-augmented QA",
		Long: `webrag crawls a website within its domain, renders every page,
extracts readable text, splits it into overlapping chunks and indexes
the chunks in a vector store.

Features:
  • Headless browser rendering for script-built sites, or plain HTTP
  • Link discovery in anchors, inline JSON payloads and component modules
  • Recursive character chunking with overlap
  • Ollama or OpenAI embeddings, MongoDB or JSONL storage
  • Background indexing jobs over a REST API
  • Prometheus metrics endpoint`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("webrag %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if configYAML {
				out, err := config.MarshalYAML(cfg)
				if err != nil {
					return err
				}
				fmt.Print(string(out))
				return nil
			}
			fmt.Printf("Crawl:\n")
			fmt.Printf("  Max Depth:         %d\n", cfg.Crawl.MaxDepth)
			fmt.Printf("  Delay:             %s\n", cfg.Crawl.Delay)
			fmt.Printf("  Max Pages:         %d\n", cfg.Crawl.MaxPages)
			fmt.Printf("\nRenderer:\n")
			fmt.Printf("  Type:              %s\n", cfg.Renderer.Type)
			fmt.Printf("  Page Timeout:      %s\n", cfg.Renderer.PageLoadTimeout)
			fmt.Printf("  Content Wait:      %s\n", cfg.Renderer.ContentWaitTimeout)
			fmt.Printf("  Selectors:         %s\n", strings.Join(cfg.Renderer.ContentSelectors, ", "))
			fmt.Printf("  Stealth:           %v\n", cfg.Renderer.Stealth)
			fmt.Printf("\nPipeline:\n")
			fmt.Printf("  Min Words:         %d\n", cfg.Pipeline.MinWords)
			fmt.Printf("  Dedup:             %v\n", cfg.Pipeline.Dedup)
			fmt.Printf("  Redact PII:        %v\n", cfg.Pipeline.RedactPII)
			fmt.Printf("\nChunk:\n")
			fmt.Printf("  Size:              %d\n", cfg.Chunk.ChunkSize)
			fmt.Printf("  Overlap:           %d\n", cfg.Chunk.ChunkOverlap)
			fmt.Printf("\nEmbedding:\n")
			fmt.Printf("  Provider:          %s\n", cfg.Embedding.Provider)
			fmt.Printf("  Endpoint:          %s\n", cfg.Embedding.Endpoint)
			fmt.Printf("  Model:             %s\n", cfg.Embedding.Model)
			fmt.Printf("  API Key:           %v\n", cfg.Embedding.APIKey != "")
			fmt.Printf("\nStore:\n")
			fmt.Printf("  Type:              %s\n", cfg.Store.Type)
			if cfg.Store.Type == "mongodb" {
				fmt.Printf("  Database:          %s.%s\n", cfg.Store.Database, cfg.Store.Collection)
			} else {
				fmt.Printf("  Output Dir:        %s\n", cfg.Store.OutputDir)
			}
			fmt.Printf("\nIndexer:\n")
			fmt.Printf("  Namespace:         %q\n", cfg.Indexer.Namespace)
			fmt.Printf("  Batch Size:        %d\n", cfg.Indexer.BatchSize)
			fmt.Printf("  Concurrency:       %d\n", cfg.Indexer.Concurrency)
			fmt.Printf("\nAPI:\n")
			fmt.Printf("  Port:              %d\n", cfg.API.Port)
			fmt.Printf("  Task Retention:    %s\n", cfg.API.TaskRetention)
			fmt.Printf("  Auth:              %v\n", cfg.API.APIKey != "")
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Path:              %s\n", cfg.Metrics.Path)
			fmt.Printf("\nUser config dir:     %s\n", config.Dir())
			return nil
		},
	}

	cmd.Flags().BoolVar(&configYAML, "yaml", false, "print the effective configuration as YAML")

	return cmd
}

// loadConfig loads the config file, applies overrides and validates.
func loadConfig(overrides func(cfg *config.Config)) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if overrides != nil {
		overrides(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogger creates a structured logger.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	format := "text"
	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		format = cfg.Logging.Format
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
