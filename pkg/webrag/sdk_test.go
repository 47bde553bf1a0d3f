package webrag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/IshaanNene/webrag/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type siteRenderer map[string]string

func (s siteRenderer) Render(_ context.Context, url string) (*Page, error) {
	markup, ok := s[url]
	if !ok {
		return nil, &types.RenderError{URL: url, StatusCode: 404, Err: errors.New("not found")}
	}
	return &Page{URL: url, FinalURL: url, HTML: markup}, nil
}

func (s siteRenderer) Close() error { return nil }
func (s siteRenderer) Type() string { return "site" }

var testSite = siteRenderer{
	"https://example.com/": `<html><body><nav><a href="/guide">Guide</a><a href="https://other.org/">Out</a></nav>
		<main><p>Home page introduction for the SDK test.</p></main></body></html>`,
	"https://example.com/guide": `<html><body><main><p>The guide explains every step in order.</p></main></body></html>`,
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithLogger(testLogger),
		WithDelay(0),
		WithCustomRenderer(testSite),
		WithJSONLStore(t.TempDir()),
	}, opts...)
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientCrawl(t *testing.T) {
	c := newTestClient(t)

	docs, err := c.Crawl(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].SourceURL != "https://example.com" || docs[1].SourceURL != "https://example.com/guide" {
		t.Errorf("unexpected order: %s, %s", docs[0].SourceURL, docs[1].SourceURL)
	}
}

func TestClientChunk(t *testing.T) {
	c := newTestClient(t, WithChunking(10, 2))

	docs := []Document{types.NewDocument("https://example.com/", "Home", "alpha beta gamma delta epsilon", 0)}
	chunks, err := c.Chunk(docs)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if len([]rune(ch.Content)) > 10 {
			t.Errorf("chunk %d too long: %q", i, ch.Content)
		}
		if ch.ChunkIndex != i || ch.SourceURL != "https://example.com/" {
			t.Errorf("chunk %d metadata wrong: %+v", i, ch)
		}
	}
}

func TestClientIngestDryRun(t *testing.T) {
	c := newTestClient(t, WithDryRun(), WithChunking(30, 5))

	report, err := c.Ingest(context.Background(), "https://example.com/", "sdk")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Documents != 2 || report.Indexed != report.Chunks {
		t.Errorf("unexpected report: %+v", report)
	}

	stats, err := c.Stats(context.Background(), "sdk")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.VectorCount != int64(report.Chunks) || stats.Sources != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestNewRejectsBadChunking(t *testing.T) {
	_, err := New(WithLogger(testLogger), WithChunking(10, 10), WithJSONLStore(t.TempDir()))
	if err == nil {
		t.Fatal("expected error for overlap >= size")
	}
}
