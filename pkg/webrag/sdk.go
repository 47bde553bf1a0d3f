// Package webrag provides a public SDK for embedding website ingestion in
// other programs.
//
// Example usage:
//
//	client, err := webrag.New(
//	    webrag.WithMaxDepth(3),
//	    webrag.WithRenderer("static"),
//	    webrag.WithJSONLStore("./output"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	report, err := client.Ingest(ctx, "https://docs.example.com", "docs")
package webrag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/IshaanNene/webrag/internal/chunker"
	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/crawler"
	"github.com/IshaanNene/webrag/internal/index"
	"github.com/IshaanNene/webrag/internal/pipeline"
	"github.com/IshaanNene/webrag/internal/renderer"
	"github.com/IshaanNene/webrag/internal/types"
)

type (
	// Document is the extracted text of one page.
	Document = types.Document
	// Chunk is a bounded slice of a document's text.
	Chunk = types.Chunk
	// Report summarizes one ingestion run.
	Report = pipeline.Report
	// Stats describes one namespace of the vector store.
	Stats = index.Stats
	// Renderer loads pages. Implementations are used for one crawl at a time.
	Renderer = renderer.Renderer
	// Page is the markup a Renderer returns.
	Page = renderer.Page
	// Embedder turns text into vectors.
	Embedder = index.Embedder
	// VectorStore persists embedded chunks.
	VectorStore = index.VectorStore
)

// Client is the high-level API for using webrag as a library.
type Client struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    index.VectorStore
	embedder index.Embedder
	render   renderer.Renderer
	dryRun   bool
}

// Option configures a Client.
type Option func(*Client)

// WithMaxDepth sets the maximum number of links followed from the seed.
func WithMaxDepth(depth int) Option {
	return func(c *Client) { c.cfg.Crawl.MaxDepth = depth }
}

// WithDelay sets the politeness delay between page loads.
func WithDelay(d time.Duration) Option {
	return func(c *Client) { c.cfg.Crawl.Delay = d }
}

// WithMaxPages caps the number of pages visited per crawl.
func WithMaxPages(n int) Option {
	return func(c *Client) { c.cfg.Crawl.MaxPages = n }
}

// WithRenderer selects the page renderer type: "browser" or "static".
func WithRenderer(kind string) Option {
	return func(c *Client) { c.cfg.Renderer.Type = kind }
}

// WithCustomRenderer uses r for every crawl instead of building one from
// config. The client does not close it.
func WithCustomRenderer(r Renderer) Option {
	return func(c *Client) { c.render = r }
}

// WithChunking sets chunk size and overlap in characters.
func WithChunking(size, overlap int) Option {
	return func(c *Client) {
		c.cfg.Chunk.ChunkSize = size
		c.cfg.Chunk.ChunkOverlap = overlap
	}
}

// WithEmbedding selects the embedding provider, endpoint and model.
func WithEmbedding(provider, endpoint, model string) Option {
	return func(c *Client) {
		c.cfg.Embedding.Provider = provider
		c.cfg.Embedding.Endpoint = endpoint
		c.cfg.Embedding.Model = model
	}
}

// WithCustomEmbedder uses e instead of the configured HTTP provider.
func WithCustomEmbedder(e Embedder) Option {
	return func(c *Client) { c.embedder = e }
}

// WithJSONLStore stores records as JSONL files under dir.
func WithJSONLStore(dir string) Option {
	return func(c *Client) {
		c.cfg.Store.Type = "jsonl"
		c.cfg.Store.OutputDir = dir
	}
}

// WithMongoStore stores records in a MongoDB collection.
func WithMongoStore(uri, database, collection string) Option {
	return func(c *Client) {
		c.cfg.Store.Type = "mongodb"
		c.cfg.Store.URI = uri
		c.cfg.Store.Database = database
		c.cfg.Store.Collection = collection
	}
}

// WithCustomStore uses s instead of opening a store from config. The
// client closes it on Close.
func WithCustomStore(s VectorStore) Option {
	return func(c *Client) { c.store = s }
}

// WithDryRun stores chunks without embedding them.
func WithDryRun() Option {
	return func(c *Client) { c.dryRun = true }
}

// WithLogger sets the logger used by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(c *Client) { c.cfg.Logging.Level = "debug" }
}

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	c := &Client{cfg: config.DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		level := slog.LevelInfo
		if c.cfg.Logging.Level == "debug" {
			level = slog.LevelDebug
		}
		c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	if err := config.ValidateChunk(c.cfg.Chunk); err != nil {
		return nil, err
	}
	if c.cfg.Crawl.MaxDepth < 0 || c.cfg.Crawl.Delay < 0 {
		return nil, fmt.Errorf("max depth and delay must be >= 0")
	}

	if c.store == nil {
		s, err := index.NewStore(c.cfg.Store, c.logger)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		c.store = s
	}
	return c, nil
}

// Crawl visits seed and every in-scope page within the depth limit and
// returns one document per page with extractable text, in visit order.
func (c *Client) Crawl(ctx context.Context, seed string) ([]Document, error) {
	cr := crawler.New(c.cfg.Crawl, c.render, c.logger, c.crawlerOptions()...)
	result, err := cr.Crawl(ctx, seed)
	if err != nil {
		return nil, err
	}
	return result.Documents, nil
}

// Chunk splits documents into overlapping chunks.
func (c *Client) Chunk(docs []Document) ([]Chunk, error) {
	ch, err := chunker.New(c.cfg.Chunk)
	if err != nil {
		return nil, err
	}
	return ch.Chunk(docs), nil
}

// Ingest crawls seed, chunks the documents and indexes them under namespace.
func (c *Client) Ingest(ctx context.Context, seed, namespace string) (*Report, error) {
	opts := []pipeline.IngestOption{pipeline.WithDryRun(c.dryRun)}
	if c.embedder != nil {
		opts = append(opts, pipeline.WithEmbedder(c.embedder))
	}
	if c.render != nil {
		r := c.render
		opts = append(opts, pipeline.WithRendererFactory(func() (renderer.Renderer, error) {
			return nopCloser{r}, nil
		}))
	}

	in, err := pipeline.NewIngestor(c.cfg, c.store, c.logger, opts...)
	if err != nil {
		return nil, err
	}
	return in.Run(ctx, seed, namespace)
}

// Stats describes the contents of namespace.
func (c *Client) Stats(ctx context.Context, namespace string) (*Stats, error) {
	if namespace == "" {
		namespace = index.DefaultNamespace
	}
	return c.store.Stats(ctx, namespace)
}

// Close releases the vector store.
func (c *Client) Close() error {
	return c.store.Close()
}

func (c *Client) crawlerOptions() []crawler.Option {
	if c.render != nil {
		return nil
	}
	rcfg := c.cfg.Renderer
	logger := c.logger
	return []crawler.Option{
		crawler.WithRendererFactory(func() (renderer.Renderer, error) {
			return renderer.New(rcfg, logger)
		}),
	}
}

// nopCloser keeps a caller-owned renderer open across runs.
type nopCloser struct {
	renderer.Renderer
}

func (nopCloser) Close() error { return nil }
