// Package observability exposes ingestion counters in Prometheus text format.
package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational metrics for ingestion.
type Metrics struct {
	// Crawl metrics
	PagesVisited       atomic.Int64
	PagesRendered      atomic.Int64
	RenderErrors       atomic.Int64
	RenderTimeouts     atomic.Int64
	BytesRendered      atomic.Int64
	LinksDiscovered    atomic.Int64
	DocumentsExtracted atomic.Int64
	FrontierDepth      atomic.Int64

	// Chunk and index metrics
	ChunksProduced  atomic.Int64
	EmbeddingsTotal atomic.Int64
	EmbeddingErrors atomic.Int64
	VectorsUpserted atomic.Int64

	// Job metrics
	JobsStarted   atomic.Int64
	JobsCompleted atomic.Int64
	JobsFailed    atomic.Int64
	JobsRunning   atomic.Int32

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		kind  string
		value int64
	}{
		{"webrag_pages_visited_total", "Total URLs taken from the frontier and visited", "counter", m.PagesVisited.Load()},
		{"webrag_pages_rendered_total", "Total pages rendered successfully", "counter", m.PagesRendered.Load()},
		{"webrag_render_errors_total", "Total page render failures", "counter", m.RenderErrors.Load()},
		{"webrag_render_timeouts_total", "Total page loads that hit the deadline", "counter", m.RenderTimeouts.Load()},
		{"webrag_bytes_rendered_total", "Total bytes of rendered markup", "counter", m.BytesRendered.Load()},
		{"webrag_links_discovered_total", "Total in-scope links discovered", "counter", m.LinksDiscovered.Load()},
		{"webrag_documents_extracted_total", "Total non-empty documents extracted", "counter", m.DocumentsExtracted.Load()},
		{"webrag_frontier_depth", "Current number of pending frontier entries", "gauge", m.FrontierDepth.Load()},
		{"webrag_chunks_produced_total", "Total chunks produced", "counter", m.ChunksProduced.Load()},
		{"webrag_embeddings_total", "Total embedding requests", "counter", m.EmbeddingsTotal.Load()},
		{"webrag_embedding_errors_total", "Total failed embedding requests", "counter", m.EmbeddingErrors.Load()},
		{"webrag_vectors_upserted_total", "Total vectors written to the store", "counter", m.VectorsUpserted.Load()},
		{"webrag_jobs_started_total", "Total indexing jobs started", "counter", m.JobsStarted.Load()},
		{"webrag_jobs_completed_total", "Total indexing jobs completed", "counter", m.JobsCompleted.Load()},
		{"webrag_jobs_failed_total", "Total indexing jobs failed", "counter", m.JobsFailed.Load()},
		{"webrag_jobs_running", "Currently running indexing jobs", "gauge", int64(m.JobsRunning.Load())},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts a standalone metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"pages_visited":       m.PagesVisited.Load(),
		"pages_rendered":      m.PagesRendered.Load(),
		"render_errors":       m.RenderErrors.Load(),
		"render_timeouts":     m.RenderTimeouts.Load(),
		"bytes_rendered":      m.BytesRendered.Load(),
		"links_discovered":    m.LinksDiscovered.Load(),
		"documents_extracted": m.DocumentsExtracted.Load(),
		"frontier_depth":      m.FrontierDepth.Load(),
		"chunks_produced":     m.ChunksProduced.Load(),
		"embeddings_total":    m.EmbeddingsTotal.Load(),
		"embedding_errors":    m.EmbeddingErrors.Load(),
		"vectors_upserted":    m.VectorsUpserted.Load(),
		"jobs_started":        m.JobsStarted.Load(),
		"jobs_completed":      m.JobsCompleted.Load(),
		"jobs_failed":         m.JobsFailed.Load(),
		"jobs_running":        int64(m.JobsRunning.Load()),
	}
}
