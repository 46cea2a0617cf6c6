// Package scheduler drives the scrape cadence: it repeatedly loads the
// board documents, picks the due set, runs scrapes through a bounded
// worker pool, reconciles the outcome into each board, and persists the
// updated documents. It is the only writer of board state.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"jobwatch/internal/config"
	"jobwatch/internal/metrics"
	"jobwatch/internal/model"
	"jobwatch/internal/scrape"
	"jobwatch/internal/store"
)

// tickInterval is the pause between scheduler passes.
const tickInterval = time.Second

// Scraper is the slice of the scrape engine the scheduler needs.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string, opts scrape.Options) ([]model.Posting, scrape.Meta, error)
}

// Config carries the cadence parameters.
type Config struct {
	BaseFrequency time.Duration
	Jitter        time.Duration
	MinDelay      time.Duration
	ErrorBackoff  time.Duration
	ErrorJitter   time.Duration
	Concurrency   int
	DryRun        bool
	Once          bool

	ScrapeTimeout time.Duration
	MaxPages      int
	SameHostOnly  bool
}

func (c Config) withDefaults() Config {
	if c.BaseFrequency <= 0 {
		c.BaseFrequency = time.Hour
	}
	if c.Jitter <= 0 {
		c.Jitter = 30 * time.Minute
	}
	if c.MinDelay <= 0 {
		c.MinDelay = 5 * time.Minute
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 20 * time.Minute
	}
	if c.ErrorJitter <= 0 {
		c.ErrorJitter = 5 * time.Minute
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.ScrapeTimeout <= 0 {
		c.ScrapeTimeout = 20 * time.Second
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 5
	}
	return c
}

// FromConfig maps the YAML scheduler/scraper sections onto a Config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		BaseFrequency: time.Duration(cfg.Scheduler.BaseFrequencyMinutes) * time.Minute,
		Jitter:        time.Duration(cfg.Scheduler.JitterMinutes) * time.Minute,
		MinDelay:      time.Duration(cfg.Scheduler.MinDelayMinutes) * time.Minute,
		ErrorBackoff:  time.Duration(cfg.Scheduler.ErrorBackoffMinutes) * time.Minute,
		ErrorJitter:   time.Duration(cfg.Scheduler.ErrorJitterMinutes) * time.Minute,
		Concurrency:   cfg.Scheduler.Concurrency,
		DryRun:        cfg.Scheduler.DryRun,
		Once:          cfg.Scheduler.Once,
		ScrapeTimeout: cfg.ScrapeTimeout(),
		MaxPages:      cfg.Scraper.MaxPages,
		SameHostOnly:  !cfg.Scraper.FollowForeignHosts,
	}
}

type Scheduler struct {
	cfg     Config
	store   *store.Store
	scraper Scraper
	log     *slog.Logger

	// overridable for deterministic tests
	now     func() time.Time
	randDur func(time.Duration) time.Duration
}

func New(cfg Config, st *store.Store, sc Scraper, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cfg:     cfg.withDefaults(),
		store:   st,
		scraper: sc,
		log:     log,
		now:     time.Now,
		randDur: func(d time.Duration) time.Duration { return time.Duration(rand.Int63n(int64(d))) },
	}
}

// Run loops until the context is cancelled, or returns after one pass
// in once mode.
func (s *Scheduler) Run(ctx context.Context) error {
	sem := make(chan struct{}, s.cfg.Concurrency)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.tick(ctx, sem)
		if s.cfg.Once {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tickInterval):
		}
	}
}

// tick snapshots the due set once, dispatches up to twice the pool size
// through the semaphore, and waits for the batch. A board in flight can
// not be re-dispatched because the next snapshot happens only after the
// batch finished and persisted its next_scrape_at.
func (s *Scheduler) tick(ctx context.Context, sem chan struct{}) {
	boards, err := s.store.ListBoards()
	if err != nil {
		s.log.Warn("failed to list boards", "error", err)
		return
	}

	now := s.now()
	var due []*model.JobBoard
	for _, b := range boards {
		// First-run boards carry neither marker and are due at once,
		// as are boards whose re-scrape markers were cleared.
		if b.NextScrapeAt == nil || !b.NextScrapeAt.After(now) {
			due = append(due, b)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		ti, tj := due[i].NextScrapeAt, due[j].NextScrapeAt
		if (ti == nil) != (tj == nil) {
			return ti == nil
		}
		if ti == nil {
			return false
		}
		return ti.Before(*tj)
	})

	if batch := 2 * s.cfg.Concurrency; len(due) > batch {
		due = due[:batch]
	}

	var wg sync.WaitGroup
	for _, b := range due {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(b *model.JobBoard) {
			defer wg.Done()
			defer func() { <-sem }()
			s.processBoard(ctx, b)
		}(b)
	}
	wg.Wait()
}

func (s *Scheduler) processBoard(ctx context.Context, b *model.JobBoard) {
	start := s.now()

	// Budget the whole attempt, pagination included.
	budget := s.cfg.ScrapeTimeout * time.Duration(s.cfg.MaxPages+2)
	attemptCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	jobs, meta, err := s.scraper.Scrape(attemptCtx, b.WebsiteURL, scrape.Options{
		Timeout:      s.cfg.ScrapeTimeout,
		MaxPages:     s.cfg.MaxPages,
		SameHostOnly: s.cfg.SameHostOnly,
	})
	if ctx.Err() != nil {
		// Shutdown mid-scrape: abort without recording or persisting.
		return
	}

	finished := s.now()
	ok := err == nil
	durMs := finished.Sub(start).Milliseconds()

	b.Reconcile(jobs, finished, ok, durMs, meta.RendererUsed, meta.ErrorKind)

	var next time.Time
	if ok {
		next = s.nextOnSuccess(finished, b.LastScraped)
	} else {
		next = finished.Add(s.cfg.ErrorBackoff + s.uniformAround(s.cfg.ErrorJitter)).UTC()
	}
	b.NextScrapeAt = &next

	slug := model.Slugify(b.Title)
	metrics.RecordScrape(slug, ok, len(jobs), meta.ErrorKind, durMs, meta.RenderedPages)

	attrs := []any{
		"board", slug,
		"ok", ok,
		"count", len(jobs),
		"duration_ms", durMs,
		"next_scrape_at", next,
	}
	if meta.ATSAdapter != "" {
		attrs = append(attrs, "adapter", meta.ATSAdapter)
	}
	if meta.Strategy != "" {
		attrs = append(attrs, "strategy", meta.Strategy)
	}
	if err != nil {
		attrs = append(attrs, "error_kind", meta.ErrorKind, "error", err)
		s.log.Warn("scrape finished", attrs...)
	} else {
		s.log.Info("scrape finished", attrs...)
	}

	if s.cfg.DryRun {
		return
	}
	if err := s.store.Save(b); err != nil {
		s.log.Error("failed to persist board", "board", slug, "error", err)
	}
}

// nextOnSuccess applies the jittered cadence: base plus uniform jitter
// measured from the last scrape, clamped forward so a late run never
// schedules an immediate follow-up for the whole fleet at once.
func (s *Scheduler) nextOnSuccess(now time.Time, lastScraped *time.Time) time.Time {
	base := now
	if lastScraped != nil {
		base = *lastScraped
	}
	candidate := base.Add(s.cfg.BaseFrequency + s.uniformAround(s.cfg.Jitter))
	if candidate.Before(now.Add(s.cfg.MinDelay)) {
		candidate = now.Add(s.cfg.MinDelay + s.randDur(30*time.Second))
	}
	return candidate.UTC()
}

// uniformAround draws from uniform(-j, +j).
func (s *Scheduler) uniformAround(j time.Duration) time.Duration {
	if j <= 0 {
		return 0
	}
	return s.randDur(2*j) - j
}
