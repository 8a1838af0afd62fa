// Package headless loads pages in a headless Chrome session.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/vbw-stats-scraper/internal/scraper"
)

const defaultPageLoadTimeout = 10 * time.Second

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent         string
	PageLoadTimeout   time.Duration
	DisableImages     bool
	DisableJavaScript bool
	// ExecPath overrides the Chrome binary; empty uses the default lookup.
	ExecPath string
}

// Fetcher implements scraper.Fetcher on one browser shared by every page
// load of a run. Each Fetch opens and closes its own tab.
type Fetcher struct {
	cfg           Config
	allocCancel   context.CancelFunc
	browser       context.Context
	browserCancel context.CancelFunc
	closeOnce     sync.Once
}

// NewChromedp starts the browser and waits until it accepts commands.
func NewChromedp(ctx context.Context, cfg Config) (*Fetcher, error) {
	if cfg.PageLoadTimeout < 0 {
		return nil, errors.New("page load timeout must be >= 0")
	}
	if cfg.PageLoadTimeout == 0 {
		cfg.PageLoadTimeout = defaultPageLoadTimeout
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(cfg)...)
	browser, browserCancel := chromedp.NewContext(allocCtx)
	f := &Fetcher{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browser:       browser,
		browserCancel: browserCancel,
	}
	// An empty Run launches the browser process.
	if err := chromedp.Run(browser); err != nil {
		f.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return f, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Close shuts the browser down. It is safe to call more than once.
func (f *Fetcher) Close() {
	f.closeOnce.Do(func() {
		f.browserCancel()
		f.allocCancel()
	})
}

// Fetch navigates a fresh tab to the URL and returns the rendered DOM.
func (f *Fetcher) Fetch(ctx context.Context, request scraper.FetchRequest) (scraper.Page, error) {
	if err := f.browser.Err(); err != nil {
		return scraper.Page{}, fmt.Errorf("browser closed: %w", err)
	}
	tabCtx, tabCancel := chromedp.NewContext(f.browser)
	defer tabCancel()
	// Tie the tab to the caller as well as the browser.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, f.cfg.PageLoadTimeout)
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(tabCtx, meta.captureEvent)

	start := time.Now()
	html, finalURL, err := f.render(tabCtx, request.URL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return scraper.Page{}, fmt.Errorf("load %s: %w", request.URL, ctxErr)
		}
		return scraper.Page{}, err
	}

	status, headers, responseURL := meta.snapshotWithFallbacks(request.URL, finalURL)
	if status >= http.StatusBadRequest {
		err := fmt.Errorf("load %s: status %d", request.URL, status)
		if status < http.StatusInternalServerError && status != http.StatusTooManyRequests {
			err = fmt.Errorf("%w: %w", scraper.ErrPermanent, err)
		}
		return scraper.Page{}, err
	}
	if finalURL == "" {
		finalURL = responseURL
	}

	return scraper.Page{
		URL:          request.URL,
		FinalURL:     finalURL,
		StatusCode:   status,
		Headers:      headers,
		Body:         []byte(html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

func (f *Fetcher) render(ctx context.Context, url string) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		f.tabSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (f *Fetcher) tabSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if f.cfg.DisableJavaScript {
			if err := emulation.SetScriptExecutionDisabled(true).Do(ctx); err != nil {
				return fmt.Errorf("disable scripts: %w", err)
			}
		}
		return nil
	})
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{
		headers: http.Header{},
	}
}

// capture keeps the last document response, which is the page itself once
// redirects have been followed.
func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []any:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	m.mu.RLock()
	status, headers, url := m.status, m.headers.Clone(), m.url
	m.mu.RUnlock()
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}

	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}
