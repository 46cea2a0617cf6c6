// Package scrape is the engine that turns a board URL into postings:
// an ATS fast-path when a vendor adapter matches, otherwise a bounded
// fetch-render-extract-paginate loop.
package scrape

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"jobwatch/internal/ats"
	"jobwatch/internal/extract"
	"jobwatch/internal/httpclient"
	"jobwatch/internal/model"
	"jobwatch/internal/paginate"
	"jobwatch/internal/render"
	"jobwatch/internal/urlutil"
)

// genericWaitSelector is the broad job-like hint passed to the
// renderer when the generic flow needs to render a shell page.
const genericWaitSelector = `#job-search-app [role="listitem"], [data-automationid="ListCell"], main, [role="list"], #jobs, .job, .jobs, article`

// Options bounds one scrape run.
type Options struct {
	Timeout      time.Duration
	MaxPages     int
	SameHostOnly bool
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 5
	}
	return o
}

// Meta describes how a scrape went, independent of its results.
type Meta struct {
	// RendererUsed is nil when unknown.
	RendererUsed   *bool
	AttemptedPages int
	RenderedPages  int
	ATSAdapter     string
	// Strategy is the extractor that produced results on the generic
	// path.
	Strategy string
	// ErrorKind is set when the run failed outright.
	ErrorKind string
}

// Engine owns the shared clients for all scrapes.
type Engine struct {
	http     *httpclient.Client
	renderer *render.Renderer
	registry *ats.Registry
	log      *slog.Logger

	// robots gate is optional politeness; disabled by default.
	respectRobots bool
	robotsMu      sync.Mutex
	robotsCache   map[string]*robotstxt.RobotsData
}

// Config assembles an Engine.
type Config struct {
	HTTP          *httpclient.Client
	Renderer      *render.Renderer
	Registry      *ats.Registry
	Logger        *slog.Logger
	RespectRobots bool
}

func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		http:          cfg.HTTP,
		renderer:      cfg.Renderer,
		registry:      cfg.Registry,
		log:           log,
		respectRobots: cfg.RespectRobots,
		robotsCache:   map[string]*robotstxt.RobotsData{},
	}
}

// allowedByRobots consults the host robots.txt when the politeness
// gate is on. Unreachable or malformed robots default to allow.
func (e *Engine) allowedByRobots(ctx context.Context, rawURL string) bool {
	if !e.respectRobots {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	origin := u.Scheme + "://" + u.Host

	e.robotsMu.Lock()
	data, ok := e.robotsCache[origin]
	e.robotsMu.Unlock()
	if !ok {
		body, err := e.http.FetchText(ctx, origin+"/robots.txt", nil)
		if err == nil {
			data, _ = robotstxt.FromString(body)
		}
		e.robotsMu.Lock()
		e.robotsCache[origin] = data
		e.robotsMu.Unlock()
	}
	if data == nil {
		return true
	}
	return data.TestAgent(u.Path, urlutil.UserAgent)
}

func boolPtr(b bool) *bool { return &b }

// Scrape runs the full engine. Partial results survive mid-loop
// failures: an error return carries whatever was collected and an
// ErrorKind in meta only when the run produced nothing at all.
func (e *Engine) Scrape(ctx context.Context, rawURL string, opts Options) ([]model.Posting, Meta, error) {
	opts = opts.withDefaults()
	meta := Meta{RendererUsed: boolPtr(false)}

	if adapter, ok := e.registry.Match(rawURL); ok {
		meta.ATSAdapter = adapter.Name()
		meta.RendererUsed = boolPtr(adapter.Renders())
		jobs, err := e.registry.Scrape(ctx, adapter, rawURL, ats.Options{
			Timeout:  opts.Timeout,
			MaxPages: opts.MaxPages,
		})
		if err != nil {
			meta.ErrorKind = KindATSError
			e.log.Warn("ats scrape failed", "adapter", adapter.Name(), "url", rawURL, "error", err)
			return nil, meta, err
		}
		return jobs, meta, nil
	}

	baseHost := ""
	if u, err := url.Parse(rawURL); err == nil {
		baseHost = u.Host
	}

	visited := map[string]struct{}{}
	collected := map[string]struct{}{}
	var jobs []model.Posting
	var loopErr error
	var loopKind string

	current := rawURL
	for page := 0; page < opts.MaxPages; page++ {
		meta.AttemptedPages++

		current = urlutil.NormalizePageIdentity(current)
		if _, dup := visited[current]; dup {
			break
		}
		visited[current] = struct{}{}

		if !e.allowedByRobots(ctx, current) {
			e.log.Info("skipping disallowed path", "url", current)
			break
		}

		htmlText, err := e.http.FetchText(ctx, current, nil)
		if err != nil {
			loopErr, loopKind = err, classifyFetchErr(err)
			break
		}

		doc, err := extract.Parse(htmlText)
		if err != nil {
			loopErr, loopKind = err, KindParseError
			break
		}

		if extract.LooksJSShell(doc) {
			if e.renderer == nil {
				loopErr, loopKind = errRendererDisabled, KindRenderError
				break
			}
			rendered, err := e.renderer.HTML(ctx, render.Request{
				URL:          current,
				WaitSelector: genericWaitSelector,
			})
			if err != nil {
				loopErr, loopKind = err, classifyRenderErr(err)
				break
			}
			doc, err = extract.Parse(rendered)
			if err != nil {
				loopErr, loopKind = err, KindParseError
				break
			}
			meta.RenderedPages++
			meta.RendererUsed = boolPtr(true)
		}

		pageJobs, strategy := extract.Jobs(doc, current)
		if strategy != "" && meta.Strategy == "" {
			meta.Strategy = strategy
		}
		for _, j := range pageJobs {
			key := urlutil.CanonicalJobURL(j.Link)
			if _, dup := collected[key]; dup {
				continue
			}
			collected[key] = struct{}{}
			jobs = append(jobs, model.Posting{Title: j.Title, Link: key})
		}

		next := paginate.NextPageURL(doc, current)
		if next == "" {
			break
		}
		if opts.SameHostOnly {
			if nu, err := url.Parse(next); err != nil || (nu.Host != "" && nu.Host != baseHost) {
				break
			}
		}
		current = next
	}

	// A mid-loop failure only fails the run when nothing was
	// collected; partial results count as success.
	if loopErr != nil && len(jobs) == 0 {
		meta.ErrorKind = loopKind
		return nil, meta, loopErr
	}
	return jobs, meta, nil
}
