// Package ats holds vendor-specific scrapers for hosted applicant
// tracking systems. When a board URL matches one of them, the generic
// crawl is skipped entirely: the vendor API or a scripted browser
// session is both faster and far more reliable than heuristics.
package ats

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"jobwatch/internal/httpclient"
	"jobwatch/internal/model"
	"jobwatch/internal/render"
	"jobwatch/internal/urlutil"
)

// Options bounds a single adapter run.
type Options struct {
	Timeout  time.Duration
	MaxPages int
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

// Adapter is the contract every vendor scraper satisfies.
type Adapter interface {
	Name() string
	// Renders declares whether the adapter drives a headless browser.
	Renders() bool
	Matches(rawURL string) bool
	Scrape(ctx context.Context, rawURL string, opts Options) ([]model.Posting, error)
}

// Deps carries the shared clients adapters draw on.
type Deps struct {
	HTTP     *httpclient.Client
	Renderer *render.Renderer
	Log      *slog.Logger
}

// Registry tries adapters in a fixed order; more specific hosts come
// before the generic vendor match (Proton's board lives on a
// Greenhouse host).
type Registry struct {
	adapters []Adapter
	renderer *render.Renderer
}

// ErrRendererDisabled is returned when a rendering adapter matches but
// no browser is configured.
var ErrRendererDisabled = errors.New("renderer not configured")

func NewRegistry(deps Deps) *Registry {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Registry{renderer: deps.Renderer, adapters: []Adapter{
		newLever(deps),
		newMeta(deps),
		newMicrosoft(deps),
		newProton(deps),
		newWorkday(deps),
		newJoin(deps),
		newGreenhouse(deps),
		newAshby(deps),
	}}
}

// NewRegistryWith builds a registry from an explicit adapter list,
// keeping the given order.
func NewRegistryWith(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Match returns the first adapter claiming the URL.
func (r *Registry) Match(rawURL string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.Matches(rawURL) {
			return a, true
		}
	}
	return nil, false
}

// Scrape runs the matched adapter and deduplicates its output by
// canonical link.
func (r *Registry) Scrape(ctx context.Context, a Adapter, rawURL string, opts Options) ([]model.Posting, error) {
	if a.Renders() && r.renderer == nil {
		return nil, ErrRendererDisabled
	}
	jobs, err := a.Scrape(ctx, rawURL, opts.withDefaults())
	if err != nil {
		return nil, err
	}
	return dedupeByLink(jobs), nil
}

func dedupeByLink(jobs []model.Posting) []model.Posting {
	seen := make(map[string]struct{}, len(jobs))
	out := jobs[:0]
	for _, j := range jobs {
		link := urlutil.CanonicalJobURL(j.Link)
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, model.Posting{Title: j.Title, Link: link})
	}
	return out
}
