package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/webrag/internal/chunker"
	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/crawler"
	"github.com/IshaanNene/webrag/internal/index"
	"github.com/IshaanNene/webrag/internal/observability"
	"github.com/IshaanNene/webrag/internal/renderer"
	"github.com/IshaanNene/webrag/internal/types"
)

// Stage identifies one step of an ingestion run.
type Stage string

const (
	StageCrawl   Stage = "crawl"
	StageProcess Stage = "process"
	StageChunk   Stage = "chunk"
	StageIndex   Stage = "index"
)

// ProgressFunc receives the stage an ingestion run has entered or finished
// and the overall fraction complete.
type ProgressFunc func(stage Stage, fraction float64)

// Report summarizes an ingestion run.
type Report struct {
	Seed      string        `json:"seed"`
	Namespace string        `json:"namespace"`
	Documents int           `json:"documents"`
	Dropped   int           `json:"dropped"`
	Chunks    int           `json:"chunks"`
	Indexed   int           `json:"indexed"`
	DryRun    bool          `json:"dry_run"`
	Sources   []string      `json:"sources,omitempty"`
	Crawl     crawler.Stats `json:"crawl"`
	Duration  time.Duration `json:"duration"`
}

// IngestOption configures an Ingestor.
type IngestOption func(*Ingestor)

// WithEmbedder replaces the embedder built from config.
func WithEmbedder(e index.Embedder) IngestOption {
	return func(in *Ingestor) { in.embedder = e }
}

// WithRendererFactory replaces the renderer built from config. Each run
// creates and closes its own renderer.
func WithRendererFactory(f crawler.RendererFactory) IngestOption {
	return func(in *Ingestor) { in.renderers = f }
}

// WithIngestMetrics records counters from every stage into m.
func WithIngestMetrics(m *observability.Metrics) IngestOption {
	return func(in *Ingestor) { in.metrics = m }
}

// WithDryRun writes chunks to the store without embedding them.
func WithDryRun(dryRun bool) IngestOption {
	return func(in *Ingestor) { in.dryRun = dryRun }
}

// WithStageProgress registers a callback for stage transitions.
func WithStageProgress(fn ProgressFunc) IngestOption {
	return func(in *Ingestor) { in.onStage = fn }
}

// WithIndexProgress registers a callback invoked after every stored batch.
func WithIndexProgress(fn func(done, total int)) IngestOption {
	return func(in *Ingestor) { in.onIndex = fn }
}

// Ingestor runs crawl, document processing, chunking and indexing for one
// seed URL at a time.
type Ingestor struct {
	cfg       *config.Config
	store     index.VectorStore
	embedder  index.Embedder
	renderers crawler.RendererFactory
	logger    *slog.Logger
	metrics   *observability.Metrics
	dryRun    bool
	onStage   ProgressFunc
	onIndex   func(done, total int)
}

// NewIngestor creates an Ingestor writing to store. The store stays owned by
// the caller.
func NewIngestor(cfg *config.Config, store index.VectorStore, logger *slog.Logger, opts ...IngestOption) (*Ingestor, error) {
	in := &Ingestor{
		cfg:    cfg,
		store:  store,
		logger: logger.With("component", "ingestor"),
	}
	for _, opt := range opts {
		opt(in)
	}

	if in.renderers == nil {
		rcfg := cfg.Renderer
		in.renderers = func() (renderer.Renderer, error) {
			return renderer.New(rcfg, logger)
		}
	}
	if in.embedder == nil && !in.dryRun {
		e, err := index.NewHTTPEmbedder(cfg.Embedding, logger)
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		in.embedder = e
	}
	return in, nil
}

// Run ingests seed into namespace. An empty namespace falls back to the
// configured one. A failing stage is returned as a *types.PipelineError
// along with the report of the work done so far.
func (in *Ingestor) Run(ctx context.Context, seed, namespace string) (*Report, error) {
	start := time.Now()
	if namespace == "" {
		namespace = in.cfg.Indexer.Namespace
	}
	if namespace == "" {
		namespace = index.DefaultNamespace
	}

	report := &Report{Seed: seed, Namespace: namespace, DryRun: in.dryRun}
	fail := func(stage Stage, err error) (*Report, error) {
		report.Duration = time.Since(start)
		return report, &types.PipelineError{Stage: string(stage), URL: seed, Err: err}
	}

	in.logger.Info("ingestion started", "seed", seed, "namespace", namespace, "dry_run", in.dryRun)

	// Chunk settings are checked before paying for a crawl.
	ch, err := chunker.New(in.cfg.Chunk)
	if err != nil {
		return fail(StageChunk, err)
	}

	in.progress(StageCrawl, 0)
	c := crawler.New(in.cfg.Crawl, nil, in.logger,
		crawler.WithRendererFactory(in.renderers),
		crawler.WithMetrics(in.metrics),
	)
	result, err := c.Crawl(ctx, seed)
	if result != nil {
		report.Crawl = result.Stats
	}
	if err != nil {
		return fail(StageCrawl, err)
	}
	in.progress(StageCrawl, 0.3)

	docs, err := FromConfig(in.cfg.Pipeline, in.logger).ProcessAll(result.Documents)
	if err != nil {
		return fail(StageProcess, err)
	}
	report.Documents = len(docs)
	for _, d := range docs {
		report.Sources = append(report.Sources, d.SourceURL)
	}
	report.Dropped = len(result.Documents) - len(docs)
	if err := ctx.Err(); err != nil {
		return fail(StageProcess, err)
	}

	chunks := ch.Chunk(docs)
	report.Chunks = len(chunks)
	if in.metrics != nil {
		in.metrics.ChunksProduced.Add(int64(len(chunks)))
	}
	in.progress(StageChunk, 0.6)

	indexed, err := in.index(ctx, chunks, namespace)
	report.Indexed = indexed
	if err != nil {
		return fail(StageIndex, err)
	}
	in.progress(StageIndex, 1.0)

	report.Duration = time.Since(start)
	in.logger.Info("ingestion finished",
		"seed", seed,
		"namespace", namespace,
		"documents", report.Documents,
		"dropped", report.Dropped,
		"chunks", report.Chunks,
		"indexed", report.Indexed,
		"duration", report.Duration,
	)
	return report, nil
}

func (in *Ingestor) index(ctx context.Context, chunks []types.Chunk, namespace string) (int, error) {
	if !in.dryRun {
		ix := index.NewIndexer(in.embedder, in.store, in.cfg.Indexer, in.logger,
			index.WithMetrics(in.metrics),
			index.WithProgress(in.onIndex),
		)
		return ix.Index(ctx, chunks, namespace)
	}

	batch := max(in.cfg.Indexer.BatchSize, 1)
	written := 0
	for start := 0; start < len(chunks); start += batch {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		end := min(start+batch, len(chunks))
		records := make([]index.Record, 0, end-start)
		for _, c := range chunks[start:end] {
			records = append(records, index.NewRecord(c, nil))
		}
		if err := in.store.Upsert(ctx, records, namespace); err != nil {
			return written, &types.IndexError{Stage: "upsert", Namespace: namespace, Err: err}
		}
		written += len(records)
		if in.onIndex != nil {
			in.onIndex(written, len(chunks))
		}
	}
	return written, nil
}

func (in *Ingestor) progress(stage Stage, fraction float64) {
	if in.onStage != nil {
		in.onStage(stage, fraction)
	}
}
