package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth must be >= 0, got %d", cfg.Crawl.MaxDepth)
	}
	if cfg.Crawl.Delay < 0 {
		return fmt.Errorf("crawl.delay must be >= 0")
	}
	if cfg.Crawl.MaxPages < 0 {
		return fmt.Errorf("crawl.max_pages must be >= 0, got %d", cfg.Crawl.MaxPages)
	}

	if cfg.Renderer.Type != "browser" && cfg.Renderer.Type != "static" {
		return fmt.Errorf("renderer.type must be 'browser' or 'static', got %q", cfg.Renderer.Type)
	}
	if cfg.Renderer.PageLoadTimeout <= 0 {
		return fmt.Errorf("renderer.page_load_timeout must be > 0")
	}
	if cfg.Renderer.ContentWaitTimeout < 0 {
		return fmt.Errorf("renderer.content_wait_timeout must be >= 0")
	}
	if cfg.Renderer.MaxBodySize <= 0 {
		return fmt.Errorf("renderer.max_body_size must be > 0")
	}

	if cfg.Pipeline.MinWords < 0 {
		return fmt.Errorf("pipeline.min_words must be >= 0, got %d", cfg.Pipeline.MinWords)
	}

	if err := ValidateChunk(cfg.Chunk); err != nil {
		return err
	}

	if cfg.Embedding.Provider != "ollama" && cfg.Embedding.Provider != "openai" {
		return fmt.Errorf("embedding.provider must be 'ollama' or 'openai', got %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Model == "" {
		return fmt.Errorf("embedding.model must be set")
	}

	switch cfg.Store.Type {
	case "mongodb":
		if cfg.Store.URI == "" || cfg.Store.Database == "" || cfg.Store.Collection == "" {
			return fmt.Errorf("store.uri, store.database and store.collection are required for mongodb")
		}
	case "jsonl":
		if cfg.Store.OutputDir == "" {
			return fmt.Errorf("store.output_dir is required for jsonl")
		}
	default:
		return fmt.Errorf("store.type %q is not supported (valid: mongodb, jsonl)", cfg.Store.Type)
	}

	if cfg.Indexer.BatchSize < 1 {
		return fmt.Errorf("indexer.batch_size must be >= 1, got %d", cfg.Indexer.BatchSize)
	}
	if cfg.Indexer.Concurrency < 1 {
		return fmt.Errorf("indexer.concurrency must be >= 1, got %d", cfg.Indexer.Concurrency)
	}

	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port must be 1-65535, got %d", cfg.API.Port)
	}
	if cfg.API.TaskRetention < 0 {
		return fmt.Errorf("api.task_retention must be >= 0")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateChunk checks 0 <= overlap < size and size > 0.
func ValidateChunk(c ChunkConfig) error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk.chunk_size must be > 0, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk.chunk_overlap must be >= 0, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk.chunk_overlap (%d) must be less than chunk.chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
