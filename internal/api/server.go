// Package api exposes ingestion jobs and store statistics over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/index"
	"github.com/IshaanNene/webrag/internal/jobs"
	"github.com/IshaanNene/webrag/internal/observability"
	"github.com/IshaanNene/webrag/internal/types"
)

// TaskManager is the interface the API uses to run ingestion tasks.
type TaskManager interface {
	Submit(url, namespace string) (jobs.Task, error)
	Get(id string) (jobs.Task, error)
	List() []jobs.Task
}

// StatsProvider describes the contents of a namespace.
type StatsProvider interface {
	Stats(ctx context.Context, namespace string) (*index.Stats, error)
}

// Server provides the REST API for submitting and tracking ingestion.
type Server struct {
	mux              *http.ServeMux
	httpServer       *http.Server
	port             int
	apiKey           string
	defaultNamespace string
	logger           *slog.Logger

	tasks   TaskManager
	stats   StatsProvider
	metrics *observability.Metrics
}

// taskResponse is the wire form of a task.
type taskResponse struct {
	jobs.Task
	Message string `json:"message"`
}

// NewServer creates a new API server.
func NewServer(cfg config.APIConfig, namespace string, tasks TaskManager, stats StatsProvider, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if namespace == "" {
		namespace = index.DefaultNamespace
	}
	s := &Server{
		mux:              http.NewServeMux(),
		port:             cfg.Port,
		apiKey:           cfg.APIKey,
		defaultNamespace: namespace,
		logger:           logger.With("component", "api_server"),
		tasks:            tasks,
		stats:            stats,
		metrics:          metrics,
	}

	s.registerRoutes()
	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the API server in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	// Health
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Indexing tasks
	s.mux.HandleFunc("POST /api/index", s.requireKey(s.handleCreateTask))
	s.mux.HandleFunc("GET /api/index", s.requireKey(s.handleListTasks))
	s.mux.HandleFunc("GET /api/index/{id}", s.requireKey(s.handleGetTask))

	// Stats
	s.mux.HandleFunc("GET /api/stats", s.requireKey(s.handleStats))

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

// requireKey rejects requests without the configured X-API-Key. An empty
// key disables the check.
func (s *Server) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			got := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
				s.jsonResponse(w, http.StatusUnauthorized, map[string]string{"error": "invalid API key"})
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL       string `json:"url"`
		Namespace string `json:"namespace"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if body.Namespace == "" {
		body.Namespace = s.defaultNamespace
	}

	task, err := s.tasks.Submit(body.URL, body.Namespace)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, types.ErrInvalidURL) {
			status = http.StatusBadRequest
		}
		s.jsonResponse(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"task_id": task.ID,
		"status":  string(task.Status),
		"message": "Indexing started",
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	list := s.tasks.List()
	out := make([]taskResponse, 0, len(list))
	for _, t := range list {
		out = append(out, taskResponse{Task: t, Message: t.Message()})
	}
	s.jsonResponse(w, http.StatusOK, out)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, types.ErrTaskNotFound) {
			s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "task not found"})
			return
		}
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.jsonResponse(w, http.StatusOK, taskResponse{Task: task, Message: task.Message()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	namespace := r.URL.Query().Get("namespace")
	if namespace == "" {
		namespace = s.defaultNamespace
	}

	stats, err := s.stats.Stats(r.Context(), namespace)
	if err != nil {
		s.logger.Error("stats failed", "namespace", namespace, "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("response write failed", "error", err)
	}
}
