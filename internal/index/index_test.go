package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/observability"
	"github.com/IshaanNene/webrag/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeEmbedder returns a vector derived from the text length.
type fakeEmbedder struct {
	failOn   string
	calls    atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.failOn != "" && text == f.failOn {
		return nil, errors.New("model unavailable")
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

// memStore keeps upserted records in memory.
type memStore struct {
	mu      sync.Mutex
	batches [][]Record
	failAt  int
}

func (s *memStore) Name() string { return "memory" }
func (s *memStore) Close() error { return nil }

func (s *memStore) Upsert(ctx context.Context, records []Record, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.batches)+1 == s.failAt {
		return errors.New("disk full")
	}
	s.batches = append(s.batches, records)
	return nil
}

func (s *memStore) Stats(ctx context.Context, namespace string) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &Stats{Namespace: namespace}
	for _, b := range s.batches {
		st.VectorCount += int64(len(b))
	}
	return st, nil
}

func testChunks(n int) []types.Chunk {
	doc := types.NewDocument("https://example.com", "Home", "x", 0)
	chunks := make([]types.Chunk, n)
	for i := range chunks {
		chunks[i] = types.NewChunk(doc, fmt.Sprintf("chunk %d", i), i)
	}
	return chunks
}

func TestIndexBatchesAndOrder(t *testing.T) {
	emb := &fakeEmbedder{}
	store := &memStore{}
	m := observability.NewMetrics(testLogger)

	var progress []int
	ix := NewIndexer(emb, store, config.IndexerConfig{BatchSize: 4, Concurrency: 2}, testLogger,
		WithMetrics(m),
		WithProgress(func(done, total int) { progress = append(progress, done) }),
	)

	n, err := ix.Index(context.Background(), testChunks(10), "docs")
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if n != 10 {
		t.Errorf("indexed %d, want 10", n)
	}
	if len(store.batches) != 3 || len(store.batches[2]) != 2 {
		t.Errorf("unexpected batching: %d batches", len(store.batches))
	}
	if fmt.Sprint(progress) != "[4 8 10]" {
		t.Errorf("progress = %v", progress)
	}

	ids := make(map[string]bool)
	for b, batch := range store.batches {
		for i, rec := range batch {
			want := fmt.Sprintf("chunk %d", b*4+i)
			if rec.Text != want {
				t.Errorf("record text %q, want %q", rec.Text, want)
			}
			if len(rec.Vector) != 3 {
				t.Errorf("vector length %d", len(rec.Vector))
			}
			if ids[rec.ID] {
				t.Errorf("duplicate record ID %s", rec.ID)
			}
			ids[rec.ID] = true
			if rec.Metadata["source"] != "https://example.com" {
				t.Errorf("metadata = %v", rec.Metadata)
			}
		}
	}

	if emb.peak.Load() > 2 {
		t.Errorf("embedding concurrency %d exceeded limit 2", emb.peak.Load())
	}
	if m.VectorsUpserted.Load() != 10 || m.EmbeddingsTotal.Load() != 10 {
		t.Errorf("metrics = %v", m.Snapshot())
	}
}

func TestIndexEmpty(t *testing.T) {
	ix := NewIndexer(&fakeEmbedder{}, &memStore{}, config.IndexerConfig{}, testLogger)
	n, err := ix.Index(context.Background(), nil, "docs")
	if err != nil || n != 0 {
		t.Errorf("Index(nil) = %d, %v", n, err)
	}
}

func TestIndexEmbedErrorPropagates(t *testing.T) {
	emb := &fakeEmbedder{failOn: "chunk 5"}
	store := &memStore{}
	ix := NewIndexer(emb, store, config.IndexerConfig{BatchSize: 4, Concurrency: 4}, testLogger)

	n, err := ix.Index(context.Background(), testChunks(10), "docs")

	var indexErr *types.IndexError
	if !errors.As(err, &indexErr) {
		t.Fatalf("expected IndexError, got %v", err)
	}
	if indexErr.Stage != "embed" || indexErr.Namespace != "docs" {
		t.Errorf("unexpected error %+v", indexErr)
	}
	if n != 4 || len(store.batches) != 1 {
		t.Errorf("indexed %d records in %d batches before failure", n, len(store.batches))
	}
}

func TestIndexUpsertErrorPropagates(t *testing.T) {
	store := &memStore{failAt: 2}
	ix := NewIndexer(&fakeEmbedder{}, store, config.IndexerConfig{BatchSize: 3, Concurrency: 1}, testLogger)

	n, err := ix.Index(context.Background(), testChunks(9), "docs")

	var indexErr *types.IndexError
	if !errors.As(err, &indexErr) || indexErr.Stage != "upsert" {
		t.Fatalf("expected upsert IndexError, got %v", err)
	}
	if n != 3 {
		t.Errorf("indexed %d, want 3", n)
	}
}

func TestIndexCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emb := &ctxEmbedder{}
	ix := NewIndexer(emb, &memStore{}, config.IndexerConfig{BatchSize: 2, Concurrency: 1}, testLogger)
	if _, err := ix.Index(ctx, testChunks(4), "docs"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

type ctxEmbedder struct{}

func (ctxEmbedder) Name() string { return "ctx" }

func (ctxEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []float32{1}, nil
}

func TestHTTPEmbedderOllama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != "nomic-embed-text" || body["prompt"] != "hello" {
			t.Errorf("unexpected payload %v", body)
		}
		_, _ = w.Write([]byte(`{"embedding": [0.1, 0.2, 0.3]}`))
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(config.EmbeddingConfig{Provider: "ollama", Endpoint: srv.URL + "/", Model: "nomic-embed-text"}, testLogger)
	if err != nil {
		t.Fatalf("NewHTTPEmbedder: %v", err)
	}
	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[1] != float32(0.2) {
		t.Errorf("vector = %v", vec)
	}
}

func TestHTTPEmbedderOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"data": [{"embedding": [1, 2]}]}`))
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(config.EmbeddingConfig{
		Provider: "openai",
		Endpoint: srv.URL + "/v1",
		Model:    "text-embedding-3-small",
		APIKey:   "sk-test",
	}, testLogger)
	if err != nil {
		t.Fatalf("NewHTTPEmbedder: %v", err)
	}
	vec, err := e.Embed(context.Background(), "hello")
	if err != nil || len(vec) != 2 {
		t.Fatalf("Embed = %v, %v", vec, err)
	}
}

func TestHTTPEmbedderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(config.EmbeddingConfig{Provider: "ollama", Endpoint: srv.URL, Model: "m"}, testLogger)
	if err != nil {
		t.Fatalf("NewHTTPEmbedder: %v", err)
	}
	if _, err := e.Embed(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected HTTP 404 error, got %v", err)
	}

	if _, err := NewHTTPEmbedder(config.EmbeddingConfig{Provider: "cohere"}, testLogger); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestHTTPEmbedderNoVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding": []}`))
	}))
	defer srv.Close()

	e, _ := NewHTTPEmbedder(config.EmbeddingConfig{Provider: "ollama", Endpoint: srv.URL, Model: "m"}, testLogger)
	if _, err := e.Embed(context.Background(), "x"); !errors.Is(err, types.ErrNoEmbedding) {
		t.Errorf("expected ErrNoEmbedding, got %v", err)
	}
}

func TestJSONLStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONLStore(config.StoreConfig{OutputDir: dir}, testLogger)
	if err != nil {
		t.Fatalf("NewJSONLStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	chunks := testChunks(3)
	chunks[2].SourceURL = "https://example.com/b"

	var records []Record
	for _, ch := range chunks {
		records = append(records, NewRecord(ch, []float32{1, 2, 3, 4}))
	}
	if err := store.Upsert(ctx, records[:2], "site/docs"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert(ctx, records[2:], "site/docs"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	stats, err := store.Stats(ctx, "site/docs")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.VectorCount != 3 || stats.Dimension != 4 || stats.Sources != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if !strings.HasSuffix(store.Path("site/docs"), "site_docs.jsonl") {
		t.Errorf("unsafe namespace path %s", store.Path("site/docs"))
	}

	empty, err := store.Stats(ctx, "missing")
	if err != nil || empty.VectorCount != 0 {
		t.Errorf("Stats(missing) = %+v, %v", empty, err)
	}
}

func TestNamespaceFile(t *testing.T) {
	tests := map[string]string{
		"":        "default.jsonl",
		"docs":    "docs.jsonl",
		"../etc":  "_etc.jsonl",
		"a b":     "a_b.jsonl",
		"..":      "default.jsonl",
		"site.v2": "site.v2.jsonl",
	}
	for in, want := range tests {
		if got := namespaceFile(in); got != want {
			t.Errorf("namespaceFile(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("WEBRAG_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("WEBRAG_TEST_MONGO_URI not set")
	}

	store, err := NewMongoStore(config.StoreConfig{URI: uri, Database: "webrag_test", Collection: "vectors"}, testLogger)
	if err != nil {
		t.Fatalf("NewMongoStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	ns := "test-" + NewRecord(types.Chunk{}, nil).ID
	records := []Record{NewRecord(testChunks(1)[0], []float32{0.5, 0.5})}
	if err := store.Upsert(ctx, records, ns); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	stats, err := store.Stats(ctx, ns)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.VectorCount != 1 || stats.Dimension != 2 || stats.Sources != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
