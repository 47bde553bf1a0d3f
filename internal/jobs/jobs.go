// Package jobs runs ingestion tasks in the background and tracks their
// status and progress.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/webrag/internal/observability"
	"github.com/IshaanNene/webrag/internal/pipeline"
	"github.com/IshaanNene/webrag/internal/types"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusScraping   Status = "scraping"
	StatusProcessing Status = "processing"
	StatusIndexing   Status = "indexing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Finished reports whether s is a terminal state.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one ingestion request and its progress.
type Task struct {
	ID          string     `json:"task_id"`
	URL         string     `json:"url"`
	Namespace   string     `json:"namespace"`
	Status      Status     `json:"status"`
	Progress    float64    `json:"progress"`
	Error       string     `json:"error,omitempty"`
	Documents   int        `json:"documents"`
	Chunks      int        `json:"chunks"`
	Indexed     int        `json:"indexed"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Message returns a human readable status line.
func (t Task) Message() string {
	return fmt.Sprintf("Task is %s", t.Status)
}

// RunFunc performs the ingestion for task, reporting stage transitions
// through progress.
type RunFunc func(ctx context.Context, task Task, progress pipeline.ProgressFunc) (*pipeline.Report, error)

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records job counters into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(mg *Manager) { mg.metrics = m }
}

// WithRetention sets how long finished tasks are kept. Zero keeps them
// until the process exits.
func WithRetention(d time.Duration) Option {
	return func(mg *Manager) { mg.retention = d }
}

// Manager owns the task table and the goroutines running each task.
type Manager struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	run       RunFunc
	retention time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// NewManager creates a Manager that executes tasks with run.
func NewManager(run RunFunc, logger *slog.Logger, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		tasks:  make(map[string]*Task),
		run:    run,
		logger: logger.With("component", "jobs"),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit registers a task for url and starts it in its own goroutine.
func (m *Manager) Submit(url, namespace string) (Task, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Task{}, &types.InvalidSeedError{URL: url, Reason: "empty URL"}
	}
	m.Cleanup()

	task := &Task{
		ID:        uuid.NewString(),
		URL:       url,
		Namespace: namespace,
		Status:    StatusPending,
		CreatedAt: m.now(),
	}

	// The stop check and wg.Add share the lock Shutdown cancels under, so
	// an accepted task is always waited for.
	m.mu.Lock()
	if err := m.ctx.Err(); err != nil {
		m.mu.Unlock()
		return Task{}, fmt.Errorf("job manager stopped: %w", err)
	}
	m.tasks[task.ID] = task
	snapshot := *task
	m.wg.Add(1)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.JobsStarted.Add(1)
	}
	m.logger.Info("task submitted", "task_id", task.ID, "url", url, "namespace", namespace)

	go m.execute(task.ID)

	return snapshot, nil
}

// Get returns a copy of the task with id.
func (m *Manager) Get(id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", types.ErrTaskNotFound, id)
	}
	return *t, nil
}

// List returns copies of all tasks, newest first.
func (m *Manager) List() []Task {
	m.mu.RLock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, *t)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Cleanup removes finished tasks older than the retention period and
// returns how many were removed.
func (m *Manager) Cleanup() int {
	if m.retention <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, t := range m.tasks {
		if t.Status.Finished() && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("expired tasks removed", "count", removed)
	}
	return removed
}

// Shutdown cancels running tasks and waits for them to finish or for ctx
// to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) execute(id string) {
	defer m.wg.Done()

	if m.metrics != nil {
		m.metrics.JobsRunning.Add(1)
		defer m.metrics.JobsRunning.Add(-1)
	}

	var task Task
	m.update(id, func(t *Task) {
		started := m.now()
		t.Status = StatusRunning
		t.StartedAt = &started
		task = *t
	})

	progress := func(stage pipeline.Stage, fraction float64) {
		m.update(id, func(t *Task) {
			if status, ok := stageStatus(stage, fraction); ok {
				t.Status = status
			}
			t.Progress = fraction
		})
	}

	report, err := m.run(m.ctx, task, progress)

	m.update(id, func(t *Task) {
		completed := m.now()
		t.CompletedAt = &completed
		if report != nil {
			t.Documents = report.Documents
			t.Chunks = report.Chunks
			t.Indexed = report.Indexed
		}
		if err != nil {
			t.Status = StatusFailed
			t.Error = err.Error()
			return
		}
		t.Status = StatusCompleted
		t.Progress = 1.0
	})

	if err != nil {
		if m.metrics != nil {
			m.metrics.JobsFailed.Add(1)
		}
		m.logger.Error("task failed", "task_id", id, "url", task.URL, "error", err)
		return
	}
	if m.metrics != nil {
		m.metrics.JobsCompleted.Add(1)
	}
	m.logger.Info("task completed", "task_id", id, "url", task.URL)
}

func (m *Manager) update(id string, fn func(t *Task)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		fn(t)
	}
}

// stageStatus maps an ingestion stage transition to the task status that
// follows it.
func stageStatus(stage pipeline.Stage, fraction float64) (Status, bool) {
	switch {
	case stage == pipeline.StageCrawl && fraction == 0:
		return StatusScraping, true
	case stage == pipeline.StageCrawl:
		return StatusProcessing, true
	case stage == pipeline.StageChunk:
		return StatusIndexing, true
	}
	return "", false
}
