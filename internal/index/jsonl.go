package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/types"
)

// DefaultNamespace names the file used when no namespace is given.
const DefaultNamespace = "default"

// JSONLStore appends records as newline-delimited JSON, one file per
// namespace. It needs no external service.
type JSONLStore struct {
	dir    string
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLStore creates a store writing into cfg.OutputDir.
func NewJSONLStore(cfg config.StoreConfig, logger *slog.Logger) (*JSONLStore, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("create output dir: %w", err)}
	}
	return &JSONLStore{
		dir:    cfg.OutputDir,
		logger: logger.With("component", "jsonl_store"),
	}, nil
}

// Name returns the backend identifier.
func (s *JSONLStore) Name() string { return "jsonl" }

// Path returns the file holding namespace.
func (s *JSONLStore) Path(namespace string) string {
	return filepath.Join(s.dir, namespaceFile(namespace))
}

// Upsert appends records to the namespace file. IDs are unique per record,
// so appending never shadows an existing entry.
func (s *JSONLStore) Upsert(ctx context.Context, records []Record, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.Path(namespace), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("open output file: %w", err)}
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("encode JSONL: %w", err)}
		}
		s.count++
	}

	s.logger.Debug("records appended", "count", len(records), "path", s.Path(namespace))
	return nil
}

// Stats reads the namespace file and summarizes it.
func (s *JSONLStore) Stats(ctx context.Context, namespace string) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{Namespace: namespace}

	f, err := os.Open(s.Path(namespace))
	if errors.Is(err, os.ErrNotExist) {
		return stats, nil
	}
	if err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Err: err}
	}
	defer f.Close()

	sources := make(map[string]struct{})
	dec := json.NewDecoder(f)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("decode JSONL: %w", err)}
		}

		stats.VectorCount++
		if stats.Dimension == 0 {
			stats.Dimension = len(rec.Vector)
		}
		if src, ok := rec.Metadata["source"].(string); ok {
			sources[src] = struct{}{}
		}
	}
	stats.Sources = int64(len(sources))

	return stats, nil
}

// Close logs the number of records written.
func (s *JSONLStore) Close() error {
	s.logger.Info("JSONL store closing", "dir", s.dir, "records", s.count)
	return nil
}

// namespaceFile maps a namespace to a safe file name.
func namespaceFile(namespace string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, namespace)
	safe = strings.TrimLeft(safe, ".")
	if safe == "" {
		safe = DefaultNamespace
	}
	return safe + ".jsonl"
}
