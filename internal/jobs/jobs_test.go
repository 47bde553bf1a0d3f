package jobs

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/IshaanNene/webrag/internal/observability"
	"github.com/IshaanNene/webrag/internal/pipeline"
	"github.com/IshaanNene/webrag/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// waitFor polls the manager until the task reaches want.
func waitFor(t *testing.T, m *Manager, id string, want Status) Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		task, err := m.Get(id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if task.Status == want {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	task, _ := m.Get(id)
	t.Fatalf("task %s stuck in %s, want %s", id, task.Status, want)
	return Task{}
}

func TestTaskLifecycle(t *testing.T) {
	step := make(chan struct{})
	run := func(ctx context.Context, task Task, progress pipeline.ProgressFunc) (*pipeline.Report, error) {
		<-step
		progress(pipeline.StageCrawl, 0)
		<-step
		progress(pipeline.StageCrawl, 0.3)
		<-step
		progress(pipeline.StageChunk, 0.6)
		<-step
		progress(pipeline.StageIndex, 1.0)
		return &pipeline.Report{Documents: 3, Chunks: 7, Indexed: 7}, nil
	}

	metrics := observability.NewMetrics(testLogger)
	m := NewManager(run, testLogger, WithMetrics(metrics))

	task, err := m.Submit("https://example.com", "docs")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if task.Status != StatusPending || task.ID == "" {
		t.Fatalf("unexpected submitted task: %+v", task)
	}

	waitFor(t, m, task.ID, StatusRunning)

	steps := []struct {
		status   Status
		progress float64
	}{
		{StatusScraping, 0},
		{StatusProcessing, 0.3},
		{StatusIndexing, 0.6},
	}
	for _, s := range steps {
		step <- struct{}{}
		got := waitFor(t, m, task.ID, s.status)
		if got.Progress != s.progress {
			t.Errorf("%s: progress = %v, want %v", s.status, got.Progress, s.progress)
		}
	}

	step <- struct{}{}
	done := waitFor(t, m, task.ID, StatusCompleted)
	if done.Progress != 1.0 {
		t.Errorf("completed progress = %v", done.Progress)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("timestamps not set")
	}
	if done.Documents != 3 || done.Chunks != 7 || done.Indexed != 7 {
		t.Errorf("unexpected counts: %+v", done)
	}
	if done.Message() != "Task is completed" {
		t.Errorf("message = %q", done.Message())
	}

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if metrics.JobsStarted.Load() != 1 || metrics.JobsCompleted.Load() != 1 || metrics.JobsRunning.Load() != 0 {
		t.Errorf("unexpected metrics: %v", metrics.Snapshot())
	}
}

func TestTaskFailure(t *testing.T) {
	run := func(ctx context.Context, task Task, progress pipeline.ProgressFunc) (*pipeline.Report, error) {
		progress(pipeline.StageCrawl, 0)
		return &pipeline.Report{}, &types.PipelineError{Stage: "crawl", URL: task.URL, Err: errors.New("boom")}
	}
	metrics := observability.NewMetrics(testLogger)
	m := NewManager(run, testLogger, WithMetrics(metrics))

	task, err := m.Submit("https://example.com", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got := waitFor(t, m, task.ID, StatusFailed)
	if got.Error == "" || got.CompletedAt == nil {
		t.Errorf("failed task missing error or completion time: %+v", got)
	}

	m.Shutdown(context.Background())
	if metrics.JobsFailed.Load() != 1 {
		t.Errorf("jobs failed = %d", metrics.JobsFailed.Load())
	}
}

func TestSubmitEmptyURL(t *testing.T) {
	m := NewManager(nil, testLogger)
	_, err := m.Submit("  ", "docs")
	if !errors.Is(err, types.ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
	if len(m.List()) != 0 {
		t.Error("rejected task should not be registered")
	}
}

func TestGetUnknownTask(t *testing.T) {
	m := NewManager(nil, testLogger)
	_, err := m.Get("missing")
	if !errors.Is(err, types.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	run := func(ctx context.Context, task Task, progress pipeline.ProgressFunc) (*pipeline.Report, error) {
		return &pipeline.Report{}, nil
	}
	m := NewManager(run, testLogger)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, _ := m.Submit("https://example.com/1", "")
	waitFor(t, m, first.ID, StatusCompleted)
	second, _ := m.Submit("https://example.com/2", "")
	waitFor(t, m, second.ID, StatusCompleted)

	list := m.List()
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("unexpected order: %+v", list)
	}
	m.Shutdown(context.Background())
}

func TestCleanupRemovesExpiredTasks(t *testing.T) {
	run := func(ctx context.Context, task Task, progress pipeline.ProgressFunc) (*pipeline.Report, error) {
		return &pipeline.Report{}, nil
	}
	m := NewManager(run, testLogger, WithRetention(time.Hour))

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	task, _ := m.Submit("https://example.com", "")
	waitFor(t, m, task.ID, StatusCompleted)
	m.Shutdown(context.Background())

	if n := m.Cleanup(); n != 0 {
		t.Fatalf("fresh task removed: %d", n)
	}

	now = now.Add(2 * time.Hour)
	if n := m.Cleanup(); n != 1 {
		t.Fatalf("expected 1 expired task, got %d", n)
	}
	if _, err := m.Get(task.ID); !errors.Is(err, types.ErrTaskNotFound) {
		t.Errorf("expired task still present: %v", err)
	}
}

func TestShutdownCancelsRunningTasks(t *testing.T) {
	started := make(chan struct{})
	run := func(ctx context.Context, task Task, progress pipeline.ProgressFunc) (*pipeline.Report, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m := NewManager(run, testLogger)

	task, _ := m.Submit("https://example.com", "")
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	got, _ := m.Get(task.ID)
	if got.Status != StatusFailed {
		t.Errorf("cancelled task status = %s", got.Status)
	}
	if _, err := m.Submit("https://example.com", ""); err == nil {
		t.Error("submit after shutdown should fail")
	}
}

func TestSubmitRacingShutdownWaitsForAcceptedTasks(t *testing.T) {
	run := func(ctx context.Context, task Task, progress pipeline.ProgressFunc) (*pipeline.Report, error) {
		progress(pipeline.StageCrawl, 0)
		return &pipeline.Report{}, ctx.Err()
	}
	m := NewManager(run, testLogger)

	var (
		mu       sync.Mutex
		accepted []string
		wg       sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				task, err := m.Submit("https://example.com", "")
				if err != nil {
					return
				}
				mu.Lock()
				accepted = append(accepted, task.ID)
				mu.Unlock()
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	// Every task accepted before Shutdown returned must already be final.
	mu.Lock()
	ids := append([]string(nil), accepted...)
	mu.Unlock()
	for _, id := range ids {
		task, err := m.Get(id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if !task.Status.Finished() {
			t.Fatalf("task %s still %s after Shutdown", id, task.Status)
		}
	}

	wg.Wait()
	if len(ids) == 0 {
		t.Error("expected some tasks to be accepted before shutdown")
	}
}
