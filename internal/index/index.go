// Package index embeds chunks and writes them to a vector store.
package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/types"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name returns the embedding provider identifier.
	Name() string
}

// VectorStore persists records under a namespace.
type VectorStore interface {
	// Upsert writes records, replacing any with the same ID.
	Upsert(ctx context.Context, records []Record, namespace string) error

	// Stats describes the contents of a namespace.
	Stats(ctx context.Context, namespace string) (*Stats, error)

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the store backend identifier.
	Name() string
}

// Record is one stored vector with its source text and metadata.
type Record struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector,omitempty"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Stats summarizes one namespace of a vector store.
type Stats struct {
	Namespace   string `json:"namespace"`
	VectorCount int64  `json:"vector_count"`
	Dimension   int    `json:"dimension"`
	Sources     int64  `json:"sources"`
}

// NewRecord builds a record for chunk with a fresh ID. vector may be nil
// for records that are written without embedding.
func NewRecord(chunk types.Chunk, vector []float32) Record {
	return Record{
		ID:       uuid.NewString(),
		Vector:   vector,
		Text:     chunk.Content,
		Metadata: chunk.Metadata(),
	}
}

// NewStore opens the vector store selected by cfg.Type.
func NewStore(cfg config.StoreConfig, logger *slog.Logger) (VectorStore, error) {
	switch cfg.Type {
	case "mongodb":
		s, err := NewMongoStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "jsonl", "":
		s, err := NewJSONLStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
