package observability

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestServeHTTP(t *testing.T) {
	m := NewMetrics(testLogger)
	m.PagesRendered.Add(3)
	m.JobsRunning.Add(1)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE webrag_pages_rendered_total counter",
		"webrag_pages_rendered_total 3",
		"# TYPE webrag_jobs_running gauge",
		"webrag_jobs_running 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestSnapshot(t *testing.T) {
	m := NewMetrics(testLogger)
	m.VectorsUpserted.Add(42)

	snap := m.Snapshot()
	if snap["vectors_upserted"] != 42 {
		t.Errorf("vectors_upserted = %d", snap["vectors_upserted"])
	}
	if snap["render_errors"] != 0 {
		t.Errorf("render_errors = %d", snap["render_errors"])
	}
}
