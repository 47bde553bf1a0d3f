package renderer

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testRendererConfig() config.RendererConfig {
	cfg := config.DefaultConfig().Renderer
	cfg.Type = "static"
	cfg.PageLoadTimeout = 2 * time.Second
	return cfg
}

const testPage = `<html><head><title>Hello Page</title></head><body><main>content</main></body></html>`

func TestStaticRenderPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "br") {
			t.Errorf("expected brotli in Accept-Encoding, got %q", r.Header.Get("Accept-Encoding"))
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, testPage)
	}))
	defer srv.Close()

	r := NewStaticRenderer(testRendererConfig(), testLogger)
	defer r.Close()

	page, err := r.Render(context.Background(), srv.URL+"/docs")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if page.HTML != testPage {
		t.Errorf("unexpected markup %q", page.HTML)
	}
	if page.Title != "Hello Page" {
		t.Errorf("Title = %q", page.Title)
	}
	if page.FinalURL != srv.URL+"/docs" {
		t.Errorf("FinalURL = %q", page.FinalURL)
	}
}

func TestStaticRenderCompressed(t *testing.T) {
	tests := []struct {
		encoding string
		wrap     func(io.Writer) io.WriteCloser
	}{
		{"gzip", func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) }},
		{"br", func(w io.Writer) io.WriteCloser { return brotli.NewWriter(w) }},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", tt.encoding)
				zw := tt.wrap(w)
				_, _ = io.WriteString(zw, testPage)
				_ = zw.Close()
			}))
			defer srv.Close()

			r := NewStaticRenderer(testRendererConfig(), testLogger)
			page, err := r.Render(context.Background(), srv.URL)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if page.HTML != testPage {
				t.Errorf("decoded markup mismatch: %q", page.HTML)
			}
		})
	}
}

func TestStaticRenderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	r := NewStaticRenderer(testRendererConfig(), testLogger)
	_, err := r.Render(context.Background(), srv.URL+"/missing")

	var renderErr *types.RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if renderErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d", renderErr.StatusCode)
	}
}

func TestStaticRenderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := testRendererConfig()
	cfg.PageLoadTimeout = 50 * time.Millisecond
	r := NewStaticRenderer(cfg, testLogger)

	page, err := r.Render(context.Background(), srv.URL)

	var timeoutErr *types.RenderTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected RenderTimeoutError, got %v", err)
	}
	if page == nil {
		t.Fatal("timeout must still return a page")
	}
}

func TestStaticRenderCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, testPage)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewStaticRenderer(testRendererConfig(), testLogger)
	if _, err := r.Render(ctx, srv.URL); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewUnknownType(t *testing.T) {
	cfg := testRendererConfig()
	cfg.Type = "carrier-pigeon"
	if _, err := New(cfg, testLogger); err == nil {
		t.Error("expected error for unknown renderer type")
	}
}

func TestNewStatic(t *testing.T) {
	r, err := New(testRendererConfig(), testLogger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Type() != "static" {
		t.Errorf("Type() = %q", r.Type())
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
