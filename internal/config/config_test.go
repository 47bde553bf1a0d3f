package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative depth", func(c *Config) { c.Crawl.MaxDepth = -1 }},
		{"negative delay", func(c *Config) { c.Crawl.Delay = -time.Second }},
		{"bad renderer", func(c *Config) { c.Renderer.Type = "lynx" }},
		{"negative min words", func(c *Config) { c.Pipeline.MinWords = -1 }},
		{"zero chunk size", func(c *Config) { c.Chunk.ChunkSize = 0 }},
		{"overlap equals size", func(c *Config) { c.Chunk.ChunkOverlap = c.Chunk.ChunkSize }},
		{"negative overlap", func(c *Config) { c.Chunk.ChunkOverlap = -1 }},
		{"bad provider", func(c *Config) { c.Embedding.Provider = "cohere" }},
		{"bad store", func(c *Config) { c.Store.Type = "pinecone" }},
		{"mongo without uri", func(c *Config) { c.Store.Type = "mongodb"; c.Store.URI = "" }},
		{"zero batch", func(c *Config) { c.Indexer.BatchSize = 0 }},
		{"bad port", func(c *Config) { c.API.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	good := []string{"https://example.com", "http://example.com/a/b?c=d"}
	bad := []string{"example.com", "ftp://example.com", "https://", "::nope"}

	for _, u := range good {
		if err := ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", u, err)
		}
	}
	for _, u := range bad {
		if err := ValidateURL(u); err == nil {
			t.Errorf("ValidateURL(%q) = nil, want error", u)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webrag.yaml")
	yaml := `
crawl:
  max_depth: 2
  delay: 250ms
chunk:
  chunk_size: 500
  chunk_overlap: 50
store:
  type: jsonl
  output_dir: /tmp/vectors
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Crawl.MaxDepth != 2 {
		t.Errorf("expected max_depth 2, got %d", cfg.Crawl.MaxDepth)
	}
	if cfg.Crawl.Delay != 250*time.Millisecond {
		t.Errorf("expected delay 250ms, got %s", cfg.Crawl.Delay)
	}
	if cfg.Chunk.ChunkSize != 500 || cfg.Chunk.ChunkOverlap != 50 {
		t.Errorf("unexpected chunk config %+v", cfg.Chunk)
	}
	if cfg.Store.OutputDir != "/tmp/vectors" {
		t.Errorf("expected output dir override, got %q", cfg.Store.OutputDir)
	}
	// Untouched sections keep defaults.
	if cfg.Renderer.Type != "browser" {
		t.Errorf("expected default renderer, got %q", cfg.Renderer.Type)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestMarshalYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Crawl.MaxDepth = 4
	cfg.Crawl.Delay = 3 * time.Second
	cfg.API.APIKey = "secret"

	out, err := MarshalYAML(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(out), "secret") {
		t.Error("API key should be masked")
	}
	if cfg.API.APIKey != "secret" {
		t.Error("masking should not modify the input")
	}

	path := filepath.Join(t.TempDir(), "webrag.yaml")
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Crawl.MaxDepth != 4 || loaded.Crawl.Delay != 3*time.Second {
		t.Errorf("round trip lost crawl settings: %+v", loaded.Crawl)
	}
	if loaded.Chunk != cfg.Chunk {
		t.Errorf("round trip lost chunk settings: %+v", loaded.Chunk)
	}
}
