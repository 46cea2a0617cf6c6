// Package render drives a shared headless browser for pages that only
// produce their listings client-side. One browser serves the whole
// process; every render gets a fresh incognito page so cookies and
// storage never leak between boards.
package render

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"jobwatch/internal/urlutil"
)

const (
	defaultTimeout  = 40 * time.Second
	idleSettle      = 500 * time.Millisecond
	consentTimeout  = 1500 * time.Millisecond
	selectorTimeout = 8 * time.Second
)

// consentButtons are dismissed before waiting for content. Cookie
// walls on some career sites keep the listing behind an overlay until
// accepted.
var consentButtons = []string{
	"#onetrust-accept-btn-handler",
	"#mscc-accept-all",
	"button[data-cookiebanner='accept_button']",
}

var consentTextRe = `(?i)^\s*(accept|agree|allow)`

// Options configures the shared renderer.
type Options struct {
	// ControlURL attaches to an already-running browser instead of
	// launching one.
	ControlURL string
	Timeout    time.Duration
	UserAgent  string
	Logger     *slog.Logger
}

// Request describes one render.
type Request struct {
	URL string
	// WaitSelector, when set, is waited for after the page settles.
	// A miss triggers one more idle wait and retry before giving up
	// on the selector (the HTML is still returned).
	WaitSelector string
	// ExtraWait adds a fixed pause after the page settles, for pages
	// that hydrate without further network traffic.
	ExtraWait time.Duration
}

// Renderer owns the process-wide browser. The browser is launched
// lazily on first use and relaunched if the connection drops.
type Renderer struct {
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	cleanup func()
}

func New(opts Options) *Renderer {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = urlutil.UserAgent
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{opts: opts, log: log}
}

// IsTimeout reports whether a render error was a deadline rather than
// a browser failure.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func (r *Renderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		// A cheap call tells us whether the connection is still live.
		if _, err := (proto.BrowserGetVersion{}).Call(r.browser); err == nil {
			return r.browser, nil
		}
		r.log.Warn("browser connection lost, relaunching")
		r.closeLocked()
	}

	controlURL := r.opts.ControlURL
	var cleanup func()
	if controlURL == "" {
		l := launcher.New().Headless(true).NoSandbox(true)
		u, err := l.Launch()
		if err != nil {
			return nil, err
		}
		controlURL = u
		cleanup = l.Cleanup
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, err
	}
	r.browser = browser
	r.cleanup = cleanup
	return browser, nil
}

// Close shuts down the browser if one was launched.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

func (r *Renderer) closeLocked() {
	if r.browser != nil {
		_ = r.browser.Close()
		r.browser = nil
	}
	if r.cleanup != nil {
		r.cleanup()
		r.cleanup = nil
	}
}

// NewPage opens a fresh incognito page with image, media, and font
// requests blocked. The returned func tears the page down and must be
// called when done.
func (r *Renderer) NewPage(ctx context.Context) (*rod.Page, func(), error) {
	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, nil, err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, nil, err
	}
	page, err := incognito.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, nil, err
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.opts.UserAgent}); err != nil {
		_ = page.Close()
		return nil, nil, err
	}

	router := page.HijackRequests()
	err = router.Add("*", "", func(h *rod.Hijack) {
		switch h.Request.Type() {
		case proto.NetworkResourceTypeImage, proto.NetworkResourceTypeMedia, proto.NetworkResourceTypeFont:
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		default:
			h.ContinueRequest(&proto.FetchContinueRequest{})
		}
	})
	if err != nil {
		_ = page.Close()
		return nil, nil, err
	}
	go router.Run()

	done := func() {
		_ = router.Stop()
		_ = page.Close()
	}
	return page, done, nil
}

// HTML renders a URL and returns the post-settle document. Rendering
// never blocks longer than the configured timeout.
func (r *Renderer) HTML(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	page, done, err := r.NewPage(ctx)
	if err != nil {
		return "", err
	}
	defer done()

	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(req.URL); err != nil {
		return "", err
	}
	wait()

	r.dismissConsent(page)
	r.settle(page)

	if req.ExtraWait > 0 {
		select {
		case <-time.After(req.ExtraWait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if req.WaitSelector != "" {
		if !r.waitSelector(page, req.WaitSelector) {
			// One more settle round for slow hydration, then a
			// final try. The page HTML is returned either way.
			r.settle(page)
			if !r.waitSelector(page, req.WaitSelector) {
				r.log.Debug("wait selector never appeared",
					"url", req.URL, "selector", req.WaitSelector)
			}
		}
	}

	html, err := page.HTML()
	if err != nil {
		return "", err
	}
	return html, ctx.Err()
}

func (r *Renderer) settle(page *rod.Page) {
	wait := page.WaitRequestIdle(idleSettle, nil, nil, nil)
	wait()
}

func (r *Renderer) waitSelector(page *rod.Page, selector string) bool {
	el, err := page.Timeout(selectorTimeout).Element(selector)
	return err == nil && el != nil
}

func (r *Renderer) dismissConsent(page *rod.Page) {
	for _, sel := range consentButtons {
		el, err := page.Timeout(consentTimeout).Element(sel)
		if err != nil || el == nil {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			r.log.Debug("dismissed consent overlay", "selector", sel)
			return
		}
	}
	// Fall back to any button whose label starts with accept/agree.
	el, err := page.Timeout(consentTimeout).ElementR("button", consentTextRe)
	if err == nil && el != nil {
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			r.log.Debug("dismissed consent overlay by label")
		}
	}
}
