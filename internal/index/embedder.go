package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/types"
)

// Provider specifies which embedding backend to use.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1"

// HTTPEmbedder calls an embedding model over HTTP.
type HTTPEmbedder struct {
	cfg    config.EmbeddingConfig
	client *http.Client
	logger *slog.Logger
}

// NewHTTPEmbedder creates a new embedding client.
func NewHTTPEmbedder(cfg config.EmbeddingConfig, logger *slog.Logger) (*HTTPEmbedder, error) {
	switch Provider(cfg.Provider) {
	case ProviderOllama, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &HTTPEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "embedder", "provider", cfg.Provider),
	}, nil
}

// Name returns the provider identifier.
func (e *HTTPEmbedder) Name() string { return e.cfg.Provider }

// Embed returns the embedding vector for text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	switch Provider(e.cfg.Provider) {
	case ProviderOllama:
		return e.embedOllama(ctx, text)
	case ProviderOpenAI:
		return e.embedOpenAI(ctx, text)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", e.cfg.Provider)
	}
}

func (e *HTTPEmbedder) embedOllama(ctx context.Context, text string) ([]float32, error) {
	payload := map[string]any{
		"model":  e.cfg.Model,
		"prompt": text,
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	endpoint := strings.TrimSuffix(e.cfg.Endpoint, "/")
	if err := e.post(ctx, endpoint+"/api/embeddings", payload, &result); err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, types.ErrNoEmbedding
	}
	return result.Embedding, nil
}

func (e *HTTPEmbedder) embedOpenAI(ctx context.Context, text string) ([]float32, error) {
	payload := map[string]any{
		"model": e.cfg.Model,
		"input": text,
	}

	endpoint := strings.TrimSuffix(e.cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := e.post(ctx, endpoint+"/embeddings", payload, &result); err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, types.ErrNoEmbedding
	}
	return result.Data[0].Embedding, nil
}

// post sends payload as JSON and decodes a successful response into out.
func (e *HTTPEmbedder) post(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
