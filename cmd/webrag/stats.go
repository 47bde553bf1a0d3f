package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/webrag/internal/index"
)

var (
	statsNamespace string
	statsJSON      bool
)

// statsCmd creates the "stats" subcommand.
func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show vector store statistics for a namespace",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}

	cmd.Flags().StringVarP(&statsNamespace, "namespace", "n", "", "vector store namespace")
	cmd.Flags().BoolVar(&statsJSON, "json", false, "print statistics as JSON")

	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	namespace := statsNamespace
	if namespace == "" {
		namespace = cfg.Indexer.Namespace
	}
	if namespace == "" {
		namespace = index.DefaultNamespace
	}

	store, err := index.NewStore(cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := store.Stats(ctx, namespace)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	if statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("📊 Namespace %q (%s)\n", stats.Namespace, store.Name())
	fmt.Printf("   Vectors:   %d\n", stats.VectorCount)
	fmt.Printf("   Dimension: %d\n", stats.Dimension)
	fmt.Printf("   Sources:   %d\n", stats.Sources)
	return nil
}
