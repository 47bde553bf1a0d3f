// Package crawler walks one site depth-first, rendering each page and
// turning it into a Document.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/extract"
	"github.com/IshaanNene/webrag/internal/observability"
	"github.com/IshaanNene/webrag/internal/renderer"
	"github.com/IshaanNene/webrag/internal/scope"
	"github.com/IshaanNene/webrag/internal/types"
)

// Stats summarizes one crawl.
type Stats struct {
	PagesVisited   int           `json:"pages_visited"`
	PagesRendered  int           `json:"pages_rendered"`
	RenderErrors   int           `json:"render_errors"`
	RenderTimeouts int           `json:"render_timeouts"`
	EmptyPages     int           `json:"empty_pages"`
	LinksFound     int           `json:"links_found"`
	Duration       time.Duration `json:"duration"`
}

// Result is the outcome of a crawl. On cancellation it holds whatever was
// collected before the stop.
type Result struct {
	Documents []types.Document
	Visited   []string
	Stats     Stats
}

// RendererFactory creates a render session owned by a single crawl.
type RendererFactory func() (renderer.Renderer, error)

// Option configures the Crawler.
type Option func(*Crawler)

// WithMaxPages caps the number of visited URLs. Zero means unlimited.
func WithMaxPages(n int) Option {
	return func(c *Crawler) { c.maxPages = n }
}

// WithMetrics records crawl counters into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Crawler) { c.metrics = m }
}

// WithRendererFactory makes the crawler open a fresh renderer for every
// Crawl call and close it when the crawl ends.
func WithRendererFactory(f RendererFactory) Option {
	return func(c *Crawler) { c.factory = f }
}

// WithOnDocument registers a callback invoked for every emitted document.
func WithOnDocument(fn func(types.Document)) Option {
	return func(c *Crawler) { c.onDocument = fn }
}

// Crawler performs depth-bounded, single-domain crawls.
type Crawler struct {
	cfg        config.CrawlConfig
	renderer   renderer.Renderer
	factory    RendererFactory
	logger     *slog.Logger
	metrics    *observability.Metrics
	maxPages   int
	onDocument func(types.Document)
}

// New creates a Crawler. r may be nil when WithRendererFactory is given;
// a renderer passed here stays owned by the caller.
func New(cfg config.CrawlConfig, r renderer.Renderer, logger *slog.Logger, opts ...Option) *Crawler {
	c := &Crawler{
		cfg:      cfg,
		renderer: r,
		logger:   logger.With("component", "crawler"),
		maxPages: cfg.MaxPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl visits seed and every in-scope page reachable from it within
// MaxDepth links. Per-page failures are logged and skipped; only an invalid
// seed, a renderer that cannot start, or cancellation end the crawl early.
func (c *Crawler) Crawl(ctx context.Context, seed string) (*Result, error) {
	start := time.Now()

	seedURL, err := parseSeed(seed)
	if err != nil {
		return nil, err
	}

	r, release, err := c.acquireRenderer()
	if err != nil {
		return nil, err
	}
	defer release()

	filter := scope.New(seedURL.Hostname())
	visited := NewVisitedSet(256)
	frontier := NewFrontier()
	frontier.Push(entry{URL: scope.StripFragment(seedURL.String()), Depth: 0})

	result := &Result{}
	c.logger.Info("crawl starting",
		"seed", seed,
		"domain", filter.Domain(),
		"max_depth", c.cfg.MaxDepth,
		"delay", c.cfg.Delay,
		"renderer", r.Type(),
	)

	finish := func(err error) (*Result, error) {
		result.Visited = visited.URLs()
		result.Stats.Duration = time.Since(start)
		c.setFrontierDepth(0)
		c.logger.Info("crawl finished",
			"pages_visited", result.Stats.PagesVisited,
			"documents", len(result.Documents),
			"render_errors", result.Stats.RenderErrors,
			"duration", result.Stats.Duration,
		)
		return result, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		e, ok := frontier.Pop()
		if !ok {
			break
		}
		c.setFrontierDepth(frontier.Len())

		if e.Depth > c.cfg.MaxDepth || visited.Contains(e.URL) {
			continue
		}
		if c.maxPages > 0 && visited.Len() >= c.maxPages {
			c.logger.Info("max pages reached", "max_pages", c.maxPages)
			break
		}

		visited.Add(e.URL)
		// The delay separates page loads, so the seed is rendered at once.
		if visited.Len() > 1 {
			if err := c.wait(ctx); err != nil {
				return finish(err)
			}
		}

		links, err := c.visit(ctx, r, filter, visited, e, result)
		if err != nil {
			return finish(err)
		}

		if e.Depth+1 > c.cfg.MaxDepth {
			continue
		}
		pending := make([]string, 0, len(links))
		for _, link := range links {
			if !visited.Contains(link) {
				pending = append(pending, link)
			}
		}
		frontier.PushChildren(pending, e.Depth+1)
	}

	return finish(nil)
}

// visit renders e.URL as discovered, appends its document under the
// canonical URL and returns its links. Links resolve against the URL the
// renderer ended up at. Only cancellation is returned as an error.
func (c *Crawler) visit(ctx context.Context, r renderer.Renderer, filter *scope.Filter, visited *VisitedSet, e entry, result *Result) ([]string, error) {
	result.Stats.PagesVisited++
	c.incr(func(m *observability.Metrics) { m.PagesVisited.Add(1) })

	page, err := r.Render(ctx, e.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var timeoutErr *types.RenderTimeoutError
		if !errors.As(err, &timeoutErr) || page == nil {
			result.Stats.RenderErrors++
			c.incr(func(m *observability.Metrics) { m.RenderErrors.Add(1) })
			c.logger.Warn("render failed, skipping page", "url", e.URL, "depth", e.Depth, "error", err)
			return nil, nil
		}

		result.Stats.RenderTimeouts++
		c.incr(func(m *observability.Metrics) { m.RenderTimeouts.Add(1) })
		c.logger.Warn("render timed out, using partial content", "url", e.URL, "timeout", timeoutErr.Timeout)
	} else {
		result.Stats.PagesRendered++
		c.incr(func(m *observability.Metrics) { m.PagesRendered.Add(1) })
	}
	c.incr(func(m *observability.Metrics) { m.BytesRendered.Add(int64(len(page.HTML))) })

	base := e.URL
	if page.FinalURL != "" {
		base = page.FinalURL
		if filter.Included(base) && visited.Add(base) {
			c.logger.Debug("redirected", "url", e.URL, "final_url", base)
		}
	}

	content := extract.Text(page.HTML)
	found := extract.Links(page.HTML, base, filter)
	if len(found.Text) > 0 {
		content = strings.TrimSpace(content + "\n\n" + strings.Join(found.Text, "\n\n"))
	}

	title := page.Title
	if title == "" {
		title = extract.Title(page.HTML)
	}

	doc := types.NewDocument(scope.Canonicalize(e.URL), title, content, e.Depth)
	if doc.IsEmpty() {
		result.Stats.EmptyPages++
		c.logger.Debug("no extractable content", "url", e.URL)
	} else {
		result.Documents = append(result.Documents, doc)
		c.incr(func(m *observability.Metrics) { m.DocumentsExtracted.Add(1) })
		if c.onDocument != nil {
			c.onDocument(doc)
		}
	}

	result.Stats.LinksFound += len(found.Links)
	c.incr(func(m *observability.Metrics) { m.LinksDiscovered.Add(int64(len(found.Links))) })

	c.logger.Debug("page visited",
		"url", e.URL,
		"depth", e.Depth,
		"chars", len(doc.Content),
		"links", len(found.Links),
	)

	return found.Links, nil
}

// acquireRenderer returns the renderer for this crawl and its release func.
func (c *Crawler) acquireRenderer() (renderer.Renderer, func(), error) {
	if c.factory == nil {
		if c.renderer == nil {
			return nil, nil, fmt.Errorf("crawler has no renderer")
		}
		return c.renderer, func() {}, nil
	}

	r, err := c.factory()
	if err != nil {
		return nil, nil, err
	}
	return r, func() {
		if err := r.Close(); err != nil {
			c.logger.Warn("failed to close renderer", "error", err)
		}
	}, nil
}

// wait sleeps for the politeness delay unless ctx ends first.
func (c *Crawler) wait(ctx context.Context) error {
	if c.cfg.Delay <= 0 {
		return nil
	}
	timer := time.NewTimer(c.cfg.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Crawler) incr(fn func(m *observability.Metrics)) {
	if c.metrics != nil {
		fn(c.metrics)
	}
}

func (c *Crawler) setFrontierDepth(n int) {
	if c.metrics != nil {
		c.metrics.FrontierDepth.Store(int64(n))
	}
}

// parseSeed checks that seed is an absolute http(s) URL.
func parseSeed(seed string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(seed))
	if err != nil {
		return nil, &types.InvalidSeedError{URL: seed, Reason: err.Error()}
	}
	if u.Scheme == "" {
		return nil, &types.InvalidSeedError{URL: seed, Reason: "missing scheme"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &types.InvalidSeedError{URL: seed, Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &types.InvalidSeedError{URL: seed, Reason: "missing host"}
	}
	return u, nil
}
