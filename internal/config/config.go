package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for webrag.
type Config struct {
	Crawl     CrawlConfig     `mapstructure:"crawl"     yaml:"crawl"`
	Renderer  RendererConfig  `mapstructure:"renderer"  yaml:"renderer"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"  yaml:"pipeline"`
	Chunk     ChunkConfig     `mapstructure:"chunk"     yaml:"chunk"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Store     StoreConfig     `mapstructure:"store"     yaml:"store"`
	Indexer   IndexerConfig   `mapstructure:"indexer"   yaml:"indexer"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
}

// CrawlConfig controls one depth-bounded crawl.
type CrawlConfig struct {
	BaseURL  string        `mapstructure:"base_url"  yaml:"base_url"`
	MaxDepth int           `mapstructure:"max_depth" yaml:"max_depth"`
	Delay    time.Duration `mapstructure:"delay"     yaml:"delay"`
	MaxPages int           `mapstructure:"max_pages" yaml:"max_pages"`
}

// RendererConfig controls how pages are loaded.
type RendererConfig struct {
	Type               string        `mapstructure:"type"                 yaml:"type"` // browser, static
	PageLoadTimeout    time.Duration `mapstructure:"page_load_timeout"    yaml:"page_load_timeout"`
	ContentWaitTimeout time.Duration `mapstructure:"content_wait_timeout" yaml:"content_wait_timeout"`
	ContentSelectors   []string      `mapstructure:"content_selectors"    yaml:"content_selectors"`
	Stealth            bool          `mapstructure:"stealth"              yaml:"stealth"`
	BrowserBin         string        `mapstructure:"browser_bin"          yaml:"browser_bin"`
	UserAgent          string        `mapstructure:"user_agent"           yaml:"user_agent"`
	MaxBodySize        int64         `mapstructure:"max_body_size"        yaml:"max_body_size"`
}

// PipelineConfig controls document processing between crawl and chunking.
type PipelineConfig struct {
	MinWords  int  `mapstructure:"min_words"  yaml:"min_words"`
	Dedup     bool `mapstructure:"dedup"      yaml:"dedup"`
	RedactPII bool `mapstructure:"redact_pii" yaml:"redact_pii"`
}

// ChunkConfig controls text chunking.
type ChunkConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"    yaml:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`
}

// EmbeddingConfig controls the embedding provider.
type EmbeddingConfig struct {
	Provider string        `mapstructure:"provider" yaml:"provider"` // ollama, openai
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model    string        `mapstructure:"model"    yaml:"model"`
	APIKey   string        `mapstructure:"api_key"  yaml:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"  yaml:"timeout"`
}

// StoreConfig controls the vector store backend.
type StoreConfig struct {
	Type       string `mapstructure:"type"       yaml:"type"` // mongodb, jsonl
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
	OutputDir  string `mapstructure:"output_dir" yaml:"output_dir"`
}

// IndexerConfig controls how chunks are embedded and upserted.
type IndexerConfig struct {
	Namespace   string `mapstructure:"namespace"   yaml:"namespace"`
	BatchSize   int    `mapstructure:"batch_size"  yaml:"batch_size"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
}

// APIConfig controls the REST server.
type APIConfig struct {
	Port          int           `mapstructure:"port"           yaml:"port"`
	TaskRetention time.Duration `mapstructure:"task_retention" yaml:"task_retention"`
	APIKey        string        `mapstructure:"api_key"        yaml:"api_key"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			MaxDepth: 10,
			Delay:    1 * time.Second,
		},
		Renderer: RendererConfig{
			Type:               "browser",
			PageLoadTimeout:    30 * time.Second,
			ContentWaitTimeout: 10 * time.Second,
			ContentSelectors:   []string{"main", "article", ".content"},
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			MaxBodySize:        10 * 1024 * 1024, // 10MB
		},
		Pipeline: PipelineConfig{
			Dedup: true,
		},
		Chunk: ChunkConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			Endpoint: "http://localhost:11434",
			Model:    "nomic-embed-text",
			Timeout:  60 * time.Second,
		},
		Store: StoreConfig{
			Type:       "jsonl",
			URI:        "mongodb://localhost:27017",
			Database:   "webrag",
			Collection: "vectors",
			OutputDir:  "./output",
		},
		Indexer: IndexerConfig{
			BatchSize:   100,
			Concurrency: 4,
		},
		API: APIConfig{
			Port:          8000,
			TaskRetention: 1 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
