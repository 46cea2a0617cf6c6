package model

import (
	"sort"
	"strings"
	"time"
)

// JobBoard is a tracked career site persisted as a standalone JSON
// document. Uniqueness inside Content is by canonical link.
type JobBoard struct {
	Title         string          `json:"title"`
	IconURL       string          `json:"icon_url"`
	WebsiteURL    string          `json:"website_url"`
	LastScraped   *time.Time      `json:"last_scraped"`
	LastSuccessAt *time.Time      `json:"last_success_at"`
	NextScrapeAt  *time.Time      `json:"next_scrape_at"`
	Policy        ScrapePolicy    `json:"policy"`
	ScrapeHealth  ScrapeHealth    `json:"scrape_health"`
	Attempts      []ScrapeAttempt `json:"attempts"`
	Content       []*Job          `json:"content"`
}

// NewJobBoard creates a fresh board with default policy and health.
func NewJobBoard(title, iconURL, websiteURL string) *JobBoard {
	return &JobBoard{
		Title:        title,
		IconURL:      iconURL,
		WebsiteURL:   websiteURL,
		Policy:       DefaultScrapePolicy(),
		ScrapeHealth: NewScrapeHealth(),
	}
}

// Validate reports whether the decoded document carries the fields a
// board cannot exist without.
func (b *JobBoard) Validate() bool {
	return b != nil && strings.TrimSpace(b.Title) != "" && strings.TrimSpace(b.WebsiteURL) != ""
}

// ActiveCount returns how many jobs are currently active.
func (b *JobBoard) ActiveCount() int {
	n := 0
	for _, j := range b.Content {
		if j.IsActive() {
			n++
		}
	}
	return n
}

func (b *JobBoard) findJob(link string) *Job {
	for _, j := range b.Content {
		if j.Link == link {
			return j
		}
	}
	return nil
}

// recordAttempt appends one attempt and truncates the window to the
// most recent AttemptWindowMax entries. It returns the attempt that
// preceded the new one, if any.
func (b *JobBoard) recordAttempt(a ScrapeAttempt) *ScrapeAttempt {
	var prev *ScrapeAttempt
	if n := len(b.Attempts); n > 0 {
		p := b.Attempts[n-1]
		prev = &p
	}
	b.Attempts = append(b.Attempts, a)
	if len(b.Attempts) > AttemptWindowMax {
		b.Attempts = b.Attempts[len(b.Attempts)-AttemptWindowMax:]
	}
	return prev
}

// Reconcile merges one scrape outcome into the board: it records the
// attempt, advances the health machine, and, when the health gate
// permits, upserts scraped postings and deactivates jobs that went
// missing. Postings must already carry canonical links.
//
// The deactivation gate for empty results evaluates the health the
// board had entering this attempt: a zero observed while the board was
// still healthy may deactivate (subject to the two-successful-zeros
// policy), but once a previous zero has raised health to suspect or
// down, further zeros never touch content.
func (b *JobBoard) Reconcile(postings []Posting, at time.Time, ok bool, durationMs int64, rendererUsed *bool, errorKind string) {
	at = at.UTC()
	count := len(postings)
	if !ok {
		count = 0
	}

	healthBefore := b.ScrapeHealth.Status

	prev := b.recordAttempt(ScrapeAttempt{
		At:           at,
		OK:           ok,
		Count:        count,
		DurationMs:   durationMs,
		RendererUsed: rendererUsed,
		ErrorKind:    errorKind,
	})
	b.updateHealth(at, ok, count, prev)

	b.LastScraped = &at
	if ok {
		b.LastSuccessAt = &at
	}

	if !ok {
		return
	}

	if count == 0 {
		prevWasSuccessfulZero := prev != nil && prev.OK && prev.Count == 0
		switch {
		case b.Policy.RequireTwoSuccessfulZerosToDeactivate:
			if !prevWasSuccessfulZero || healthBefore != HealthNormal {
				return
			}
		default:
			if healthBefore != HealthNormal {
				return
			}
		}
	}

	b.merge(postings, at)
}

// merge upserts scraped postings and deactivates active jobs absent
// from the scraped set, then re-sorts content.
func (b *JobBoard) merge(postings []Posting, at time.Time) {
	window := b.Policy.FlapWindow()

	scraped := make(map[string]struct{}, len(postings))
	for _, p := range postings {
		if p.Link == "" {
			continue
		}
		if _, dup := scraped[p.Link]; dup {
			continue
		}
		scraped[p.Link] = struct{}{}

		if existing := b.findJob(p.Link); existing != nil {
			if p.Title != "" && p.Title != existing.Title {
				existing.Title = p.Title
			}
			existing.Mark(StatusActive, at, window)
		} else {
			j := &Job{Title: p.Title, Link: p.Link}
			j.Mark(StatusActive, at, window)
			b.Content = append(b.Content, j)
		}
	}

	for _, j := range b.Content {
		if _, present := scraped[j.Link]; !present && j.IsActive() {
			j.Mark(StatusInactive, at, window)
		}
	}

	b.sortContent()
}

// Clone returns a deep copy sharing no mutable state with the
// receiver. The store hands out clones so a board being reconciled by
// the scheduler never aliases one served to a concurrent reader.
func (b *JobBoard) Clone() *JobBoard {
	if b == nil {
		return nil
	}
	out := *b
	out.LastScraped = cloneTime(b.LastScraped)
	out.LastSuccessAt = cloneTime(b.LastSuccessAt)
	out.NextScrapeAt = cloneTime(b.NextScrapeAt)

	h := &out.ScrapeHealth
	h.FirstZeroAt = cloneTime(h.FirstZeroAt)
	h.FlaggedUntil = cloneTime(h.FlaggedUntil)
	h.LastNonzeroAt = cloneTime(h.LastNonzeroAt)
	h.LastSuccessAt = cloneTime(h.LastSuccessAt)

	if b.Attempts != nil {
		out.Attempts = make([]ScrapeAttempt, len(b.Attempts))
		copy(out.Attempts, b.Attempts)
		for i := range out.Attempts {
			if ru := out.Attempts[i].RendererUsed; ru != nil {
				v := *ru
				out.Attempts[i].RendererUsed = &v
			}
		}
	}
	if b.Content != nil {
		out.Content = make([]*Job, len(b.Content))
		for i, j := range b.Content {
			cj := *j
			cj.History = append([]Status(nil), j.History...)
			out.Content[i] = &cj
		}
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	ts := *t
	return &ts
}

// sortContent orders jobs active-first, then by case-folded title.
func (b *JobBoard) sortContent() {
	sort.SliceStable(b.Content, func(i, j int) bool {
		ai, aj := b.Content[i].IsActive(), b.Content[j].IsActive()
		if ai != aj {
			return ai
		}
		return strings.ToLower(b.Content[i].Title) < strings.ToLower(b.Content[j].Title)
	})
}
