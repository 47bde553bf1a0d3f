package index

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/observability"
	"github.com/IshaanNene/webrag/internal/types"
)

// Option configures the Indexer.
type Option func(*Indexer)

// WithMetrics records embedding and upsert counters into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(ix *Indexer) { ix.metrics = m }
}

// WithProgress registers a callback invoked after every stored batch.
func WithProgress(fn func(done, total int)) Option {
	return func(ix *Indexer) { ix.onProgress = fn }
}

// Indexer embeds chunks with bounded concurrency and upserts them in batches.
type Indexer struct {
	embedder    Embedder
	store       VectorStore
	batchSize   int
	concurrency int
	logger      *slog.Logger
	metrics     *observability.Metrics
	onProgress  func(done, total int)
}

// NewIndexer creates an Indexer writing to store.
func NewIndexer(embedder Embedder, store VectorStore, cfg config.IndexerConfig, logger *slog.Logger, opts ...Option) *Indexer {
	ix := &Indexer{
		embedder:    embedder,
		store:       store,
		batchSize:   max(cfg.BatchSize, 1),
		concurrency: max(cfg.Concurrency, 1),
		logger:      logger.With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Index embeds and stores chunks under namespace. It returns the number of
// records written. The first embedding or store failure stops indexing and
// is returned as a *types.IndexError; batches already written stay written.
func (ix *Indexer) Index(ctx context.Context, chunks []types.Chunk, namespace string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	ix.logger.Info("indexing started",
		"chunks", len(chunks),
		"namespace", namespace,
		"store", ix.store.Name(),
		"embedder", ix.embedder.Name(),
	)

	indexed := 0
	for start := 0; start < len(chunks); start += ix.batchSize {
		end := min(start+ix.batchSize, len(chunks))

		records, err := ix.embedBatch(ctx, chunks[start:end], namespace)
		if err != nil {
			return indexed, err
		}

		if err := ix.store.Upsert(ctx, records, namespace); err != nil {
			return indexed, &types.IndexError{Stage: "upsert", Namespace: namespace, Err: err}
		}
		indexed += len(records)
		if ix.metrics != nil {
			ix.metrics.VectorsUpserted.Add(int64(len(records)))
		}
		if ix.onProgress != nil {
			ix.onProgress(indexed, len(chunks))
		}

		ix.logger.Debug("batch stored", "records", len(records), "total", indexed)
	}

	ix.logger.Info("indexing complete", "records", indexed, "namespace", namespace)
	return indexed, nil
}

// embedBatch embeds every chunk of batch concurrently, keeping input order.
func (ix *Indexer) embedBatch(ctx context.Context, batch []types.Chunk, namespace string) ([]Record, error) {
	records := make([]Record, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)

	for i := range batch {
		g.Go(func() error {
			if ix.metrics != nil {
				ix.metrics.EmbeddingsTotal.Add(1)
			}
			vec, err := ix.embedder.Embed(gctx, batch[i].Content)
			if err != nil {
				if ix.metrics != nil {
					ix.metrics.EmbeddingErrors.Add(1)
				}
				return &types.IndexError{Stage: "embed", Namespace: namespace, Err: err}
			}
			records[i] = NewRecord(batch[i], vec)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
