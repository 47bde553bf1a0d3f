// Package pipeline processes crawled documents and drives ingestion from
// crawl through chunking to indexing.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"

	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/types"
)

// Middleware processes a document and returns the (possibly modified) document.
// Return nil to drop the document from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a document. Return nil to drop it.
	Process(doc *types.Document) (*types.Document, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// FromConfig builds a Pipeline with the middleware enabled in cfg.
func FromConfig(cfg config.PipelineConfig, logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&TrimMiddleware{})
	if cfg.RedactPII {
		p.Use(NewPIIRedactMiddleware(logger))
	}
	if cfg.MinWords > 0 {
		p.Use(&MinWordsMiddleware{Min: cfg.MinWords})
	}
	if cfg.Dedup {
		p.Use(NewDedupMiddleware())
	}
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the document through all middleware in order.
func (p *Pipeline) Process(doc *types.Document) (*types.Document, error) {
	current := doc

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				URL:   current.SourceURL,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("document dropped", "stage", mw.Name(), "url", doc.SourceURL)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// ProcessAll runs every document through the chain, keeping order and
// omitting dropped documents.
func (p *Pipeline) ProcessAll(docs []types.Document) ([]types.Document, error) {
	out := make([]types.Document, 0, len(docs))
	for i := range docs {
		doc := docs[i]
		result, err := p.Process(&doc)
		if err != nil {
			return nil, err
		}
		if result != nil {
			out = append(out, *result)
		}
	}
	return out, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// TrimMiddleware trims surrounding whitespace from content and title and
// drops documents left empty.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(doc *types.Document) (*types.Document, error) {
	doc.Content = strings.TrimSpace(doc.Content)
	doc.Title = strings.TrimSpace(doc.Title)
	if doc.Content == "" {
		return nil, nil
	}
	return doc, nil
}

// MinWordsMiddleware drops documents with fewer than Min words.
type MinWordsMiddleware struct {
	Min int
}

func (m *MinWordsMiddleware) Name() string { return "min_words" }

func (m *MinWordsMiddleware) Process(doc *types.Document) (*types.Document, error) {
	if len(strings.Fields(doc.Content)) < m.Min {
		return nil, nil
	}
	return doc, nil
}

// DedupMiddleware drops documents whose content was already seen under
// another URL, such as the same page served at two paths.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{
		seen: make(map[string]struct{}),
	}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(doc *types.Document) (*types.Document, error) {
	sum := sha256.Sum256([]byte(doc.Content))
	key := hex.EncodeToString(sum[:16])

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[key]; exists {
		return nil, nil
	}
	m.seen[key] = struct{}{}
	return doc, nil
}
