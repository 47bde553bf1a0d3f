package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied on top by the caller.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("WEBRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("webrag")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath(Dir())
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".webrag"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The embedding key is commonly exported without the prefix.
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides bind.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawl.base_url", cfg.Crawl.BaseURL)
	v.SetDefault("crawl.max_depth", cfg.Crawl.MaxDepth)
	v.SetDefault("crawl.delay", cfg.Crawl.Delay)
	v.SetDefault("crawl.max_pages", cfg.Crawl.MaxPages)

	v.SetDefault("renderer.type", cfg.Renderer.Type)
	v.SetDefault("renderer.page_load_timeout", cfg.Renderer.PageLoadTimeout)
	v.SetDefault("renderer.content_wait_timeout", cfg.Renderer.ContentWaitTimeout)
	v.SetDefault("renderer.content_selectors", cfg.Renderer.ContentSelectors)
	v.SetDefault("renderer.stealth", cfg.Renderer.Stealth)
	v.SetDefault("renderer.browser_bin", cfg.Renderer.BrowserBin)
	v.SetDefault("renderer.user_agent", cfg.Renderer.UserAgent)
	v.SetDefault("renderer.max_body_size", cfg.Renderer.MaxBodySize)

	v.SetDefault("pipeline.min_words", cfg.Pipeline.MinWords)
	v.SetDefault("pipeline.dedup", cfg.Pipeline.Dedup)
	v.SetDefault("pipeline.redact_pii", cfg.Pipeline.RedactPII)

	v.SetDefault("chunk.chunk_size", cfg.Chunk.ChunkSize)
	v.SetDefault("chunk.chunk_overlap", cfg.Chunk.ChunkOverlap)

	v.SetDefault("embedding.provider", cfg.Embedding.Provider)
	v.SetDefault("embedding.endpoint", cfg.Embedding.Endpoint)
	v.SetDefault("embedding.model", cfg.Embedding.Model)
	v.SetDefault("embedding.api_key", cfg.Embedding.APIKey)
	v.SetDefault("embedding.timeout", cfg.Embedding.Timeout)

	v.SetDefault("store.type", cfg.Store.Type)
	v.SetDefault("store.uri", cfg.Store.URI)
	v.SetDefault("store.database", cfg.Store.Database)
	v.SetDefault("store.collection", cfg.Store.Collection)
	v.SetDefault("store.output_dir", cfg.Store.OutputDir)

	v.SetDefault("indexer.namespace", cfg.Indexer.Namespace)
	v.SetDefault("indexer.batch_size", cfg.Indexer.BatchSize)
	v.SetDefault("indexer.concurrency", cfg.Indexer.Concurrency)

	v.SetDefault("api.port", cfg.API.Port)
	v.SetDefault("api.task_retention", cfg.API.TaskRetention)
	v.SetDefault("api.api_key", cfg.API.APIKey)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}

// Dir returns the per-user configuration directory searched by Load.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, "webrag")
}

// MarshalYAML renders cfg as a config file with secrets masked.
func MarshalYAML(cfg *Config) ([]byte, error) {
	masked := *cfg
	if masked.Embedding.APIKey != "" {
		masked.Embedding.APIKey = "********"
	}
	if masked.API.APIKey != "" {
		masked.API.APIKey = "********"
	}
	return yaml.Marshal(&masked)
}
