package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/extract"
	"github.com/IshaanNene/webrag/internal/types"
)

// snapshotTimeout bounds reading markup from a page that missed its load deadline.
const snapshotTimeout = 5 * time.Second

// BrowserRenderer implements Renderer with a headless Chromium via Rod.
// One browser and one tab serve a whole crawl.
type BrowserRenderer struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	cfg      config.RendererConfig
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewBrowserRenderer launches a browser and opens the tab used for rendering.
func NewBrowserRenderer(cfg config.RendererConfig, logger *slog.Logger) (*BrowserRenderer, error) {
	br := &BrowserRenderer{
		cfg:    cfg,
		logger: logger.With("component", "browser_renderer"),
	}

	launchURL, err := br.launchBrowser()
	if err != nil {
		br.launcher.Kill()
		return nil, &types.RendererInitError{Kind: "browser", Err: fmt.Errorf("launch browser: %w", err)}
	}

	browser := rod.New().ControlURL(launchURL)
	if err := connectOrKill(browser, br.launcher); err != nil {
		return nil, &types.RendererInitError{Kind: "browser", Err: fmt.Errorf("connect browser: %w", err)}
	}
	br.browser = browser

	var page *rod.Page
	if cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = browser.Close()
		br.launcher.Kill()
		return nil, &types.RendererInitError{Kind: "browser", Err: fmt.Errorf("open page: %w", err)}
	}

	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			br.logger.Warn("failed to set user agent", "error", err)
		}
	}
	br.page = page

	br.logger.Info("browser renderer ready",
		"stealth", cfg.Stealth,
		"page_load_timeout", cfg.PageLoadTimeout,
		"content_wait_timeout", cfg.ContentWaitTimeout,
	)

	return br, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (br *BrowserRenderer) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if br.cfg.BrowserBin != "" {
		l = l.Bin(br.cfg.BrowserBin)
	}
	br.launcher = l

	return l.Launch()
}

type connector interface {
	Connect() error
}

type killer interface {
	Kill()
}

// connectOrKill attaches to the launched browser, killing the process when
// the connection cannot be made.
func connectOrKill(browser connector, process killer) error {
	if err := browser.Connect(); err != nil {
		process.Kill()
		return err
	}
	return nil
}

// Render navigates the tab to url and returns the rendered markup.
func (br *BrowserRenderer) Render(ctx context.Context, url string) (*Page, error) {
	start := time.Now()

	loadCtx, cancel := context.WithTimeout(ctx, br.cfg.PageLoadTimeout)
	defer cancel()

	p := br.page.Context(loadCtx)
	err := p.Navigate(url)
	if err == nil {
		err = p.WaitLoad()
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, &types.RenderError{URL: url, Err: err}
		}

		br.logger.Warn("page load timed out, using partial content",
			"url", url,
			"timeout", br.cfg.PageLoadTimeout,
		)
		page := br.snapshot(ctx, url)
		page.Duration = time.Since(start)
		return page, &types.RenderTimeoutError{URL: url, Timeout: br.cfg.PageLoadTimeout, Err: err}
	}

	br.waitForContent(ctx, url)

	page := br.snapshot(ctx, url)
	page.Duration = time.Since(start)

	br.logger.Debug("render complete",
		"url", url,
		"final_url", page.FinalURL,
		"size", len(page.HTML),
		"duration", page.Duration,
	)

	return page, nil
}

// waitForContent waits for the first content selector to appear. Missing
// content is not an error; the page may simply not use those containers.
func (br *BrowserRenderer) waitForContent(ctx context.Context, url string) {
	if br.cfg.ContentWaitTimeout <= 0 || len(br.cfg.ContentSelectors) == 0 {
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, br.cfg.ContentWaitTimeout)
	defer cancel()

	race := br.page.Context(waitCtx).Race()
	for _, sel := range br.cfg.ContentSelectors {
		race = race.Element(sel)
	}
	if _, err := race.Do(); err != nil {
		br.logger.Debug("content selectors not found, continuing",
			"url", url,
			"selectors", br.cfg.ContentSelectors,
			"error", err,
		)
	}
}

// snapshot reads whatever markup the tab currently holds.
func (br *BrowserRenderer) snapshot(ctx context.Context, url string) *Page {
	snapCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	p := br.page.Context(snapCtx)
	page := &Page{URL: url, FinalURL: url}

	html, err := p.HTML()
	if err != nil {
		br.logger.Warn("failed to read page markup", "url", url, "error", err)
		return page
	}
	page.HTML = html

	if info, err := p.Info(); err == nil && info != nil {
		page.FinalURL = info.URL
		page.Title = info.Title
	}
	if page.Title == "" {
		page.Title = extract.Title(html)
	}

	return page
}

// Close shuts down the tab and the browser exactly once.
func (br *BrowserRenderer) Close() error {
	br.closeOnce.Do(func() {
		if br.page != nil {
			_ = br.page.Close()
		}
		if br.browser != nil {
			br.closeErr = br.browser.Close()
		}
		if br.launcher != nil {
			if br.closeErr != nil {
				br.launcher.Kill()
			} else {
				br.launcher.Cleanup()
			}
		}
		br.logger.Debug("browser renderer closed")
	})
	return br.closeErr
}

// Type returns the renderer type identifier.
func (br *BrowserRenderer) Type() string {
	return "browser"
}
