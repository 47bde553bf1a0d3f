package renderer

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/extract"
	"github.com/IshaanNene/webrag/internal/types"
)

// StaticRenderer implements Renderer with plain HTTP GETs. Scripts are not
// executed, so it suits server-rendered sites.
type StaticRenderer struct {
	client *http.Client
	cfg    config.RendererConfig
	logger *slog.Logger
}

// NewStaticRenderer creates a new HTTP renderer.
func NewStaticRenderer(cfg config.RendererConfig, logger *slog.Logger) *StaticRenderer {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // decoded by hand, brotli included
	}

	return &StaticRenderer{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.PageLoadTimeout,
		},
		cfg:    cfg,
		logger: logger.With("component", "static_renderer"),
	}
}

// Render fetches url and returns the response body as markup.
func (sr *StaticRenderer) Render(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &types.RenderError{URL: url, Err: err}
	}

	if sr.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", sr.cfg.UserAgent)
	} else {
		req.Header.Set("User-Agent", "webrag/"+config.Version)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	start := time.Now()
	resp, err := sr.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isTimeout(err) {
			return &Page{URL: url, FinalURL: url, Duration: time.Since(start)},
				&types.RenderTimeoutError{URL: url, Timeout: sr.cfg.PageLoadTimeout, Err: err}
		}
		return nil, &types.RenderError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &types.RenderError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	var reader io.Reader = resp.Body
	if sr.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, sr.cfg.MaxBodySize)
	}

	reader, err = decompressReader(resp, reader)
	if err != nil {
		return nil, &types.RenderError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		if isTimeout(err) {
			return &Page{URL: url, FinalURL: url, HTML: string(body), Duration: time.Since(start)},
				&types.RenderTimeoutError{URL: url, Timeout: sr.cfg.PageLoadTimeout, Err: err}
		}
		return nil, &types.RenderError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	markup := string(body)
	page := &Page{
		URL:      url,
		FinalURL: resp.Request.URL.String(),
		Title:    extract.Title(markup),
		HTML:     markup,
		Duration: time.Since(start),
	}

	sr.logger.Debug("render complete",
		"url", url,
		"status", resp.StatusCode,
		"size", len(body),
		"duration", page.Duration,
	)

	return page, nil
}

// Close releases idle connections.
func (sr *StaticRenderer) Close() error {
	sr.client.CloseIdleConnections()
	return nil
}

// Type returns the renderer type identifier.
func (sr *StaticRenderer) Type() string {
	return "static"
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
