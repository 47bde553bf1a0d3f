// Package renderer loads pages, executing client-side scripts when needed,
// and returns the resulting markup.
package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/webrag/internal/config"
)

// Page is the outcome of loading one URL.
type Page struct {
	URL      string
	FinalURL string
	Title    string
	HTML     string
	Duration time.Duration
}

// Renderer is the interface for all page loaders.
type Renderer interface {
	// Render loads url and returns its markup. A *types.RenderTimeoutError
	// may come back together with a non-nil partial Page.
	Render(ctx context.Context, url string) (*Page, error)

	// Close releases the render session. Safe to call more than once.
	Close() error

	// Type returns the renderer type identifier.
	Type() string
}

// New creates the renderer selected by cfg.Type.
func New(cfg config.RendererConfig, logger *slog.Logger) (Renderer, error) {
	switch cfg.Type {
	case "browser", "":
		br, err := NewBrowserRenderer(cfg, logger)
		if err != nil {
			return nil, err
		}
		return br, nil
	case "static":
		return NewStaticRenderer(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown renderer type %q", cfg.Type)
	}
}
