package ats

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"jobwatch/internal/model"
	"jobwatch/internal/render"
	"jobwatch/internal/urlutil"
)

// Meta's board has no usable API and aggressively gates headless
// traffic, so this adapter scripts a real session: warm up the
// origin for cookies, enter through the listing, page by clicking
// Next, then open every detail page for its title.
var metaHostRe = regexp.MustCompile(`(?i)(?:^|\.)metacareers\.com$|(?:^|\.)facebookcareers\.com$`)

var metaPageOfRe = regexp.MustCompile(`(?i)Page\s+(\d+)\s+of\s+(\d+)`)

// metaPlaceholderTitles are page titles that mean the detail never
// loaded.
var metaPlaceholderTitles = map[string]struct{}{
	"find your role":                    {},
	"job openings at meta | meta careers": {},
}

const metaPerPageScrolls = 6

type meta struct {
	renderer *render.Renderer
	log      *slog.Logger
}

func newMeta(deps Deps) *meta {
	return &meta{renderer: deps.Renderer, log: deps.Log}
}

func (m *meta) Name() string  { return "metacareers" }
func (m *meta) Renders() bool { return true }

func (m *meta) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && metaHostRe.MatchString(u.Hostname())
}

func metaCleanTitle(t string) string {
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, " - Meta")
	t = strings.TrimSpace(t)
	if _, bad := metaPlaceholderTitles[strings.ToLower(t)]; bad {
		return ""
	}
	return t
}

func (m *meta) acceptCookies(page *rod.Page, firstTime bool) {
	timeout := 1200 * time.Millisecond
	if firstTime {
		timeout = 8 * time.Second
	}
	for _, pattern := range []string{
		`/^allow all/i`, `/^accept all/i`, `/allow all cookies/i`, `/^i agree/i`, `/^accept$/i`,
	} {
		el, err := page.Timeout(timeout).ElementR("button", pattern)
		if err != nil || el == nil {
			// After the first banner the rest time out fast.
			timeout = 1200 * time.Millisecond
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			return
		}
	}
}

// warmup visits the origin once so the session carries consent
// cookies, then enters the board through its own navigation.
func (m *meta) warmup(page *rod.Page, origin string) {
	if err := page.Navigate(origin + "/"); err != nil {
		return
	}
	page.WaitDOMStable(500*time.Millisecond, 0.1)
	m.acceptCookies(page, true)

	for _, sel := range []string{"a", "button"} {
		el, err := page.Timeout(2500 * time.Millisecond).ElementR(sel, `/^(view|find) jobs$/i`)
		if err != nil || el == nil {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			break
		}
	}

	if info, err := page.Info(); err == nil && !strings.Contains(info.URL, "/jobs") {
		_ = page.Navigate(origin + "/jobs")
	}
}

// collectJobURLs gathers detail hrefs currently in the DOM.
func (m *meta) collectJobURLs(page *rod.Page) []string {
	res, err := page.Eval(`() => Array.from(new Set(
		Array.from(document.querySelectorAll(
			"a[href^='/jobs/'], a[href*='metacareers.com/jobs/'], a[href*='facebookcareers.com/jobs/']"
		)).map(a => a.getAttribute('href') || '')
		  .map(h => h.startsWith('http') ? h : new URL(h, location.origin).toString())
		  .filter(u => /\/jobs\/[^/?#]+$/.test(u))
	))`)
	if err != nil {
		return nil
	}
	var urls []string
	for _, v := range res.Value.Arr() {
		if s := v.Str(); s != "" {
			urls = append(urls, s)
		}
	}
	return urls
}

func (m *meta) paginationInfo(page *rod.Page) (cur, total int, raw string) {
	res, err := page.Eval(`() => {
		const el = Array.from(document.querySelectorAll('div'))
			.find(d => /Page\s+\d+\s+of\s+\d+/i.test(d.innerText || ''));
		return el ? el.innerText.trim() : '';
	}`)
	if err != nil {
		return 0, 0, ""
	}
	raw = res.Value.Str()
	if mm := metaPageOfRe.FindStringSubmatch(raw); mm != nil {
		fmt.Sscanf(mm[1], "%d", &cur)
		fmt.Sscanf(mm[2], "%d", &total)
	}
	return cur, total, raw
}

func (m *meta) ensureResultsReady(page *rod.Page) {
	page.WaitDOMStable(500*time.Millisecond, 0.1)
	_ = page.Mouse.Scroll(0, 2000, 1)

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if len(m.collectJobURLs(page)) > 0 {
			return
		}
		if _, _, raw := m.paginationInfo(page); raw != "" {
			return
		}
		_ = page.Mouse.Scroll(0, 16000, 1)
		time.Sleep(500 * time.Millisecond)
	}
	m.log.Debug("meta listing never signalled readiness, continuing")
}

func (m *meta) clickNext(page *rod.Page) bool {
	el, err := page.Timeout(2 * time.Second).ElementR("a", `/^next$/i`)
	if err != nil || el == nil {
		return false
	}
	if aria, _ := el.Attribute("aria-disabled"); aria != nil {
		if *aria == "true" || *aria == "disabled" {
			return false
		}
	}
	return el.Click(proto.InputMouseButtonLeft, 1) == nil
}

func (m *meta) waitPageChange(page *rod.Page, beforeText string, before map[string]struct{}) bool {
	deadline := time.Now().Add(6 * time.Second)
	for time.Now().Before(deadline) {
		if _, _, raw := m.paginationInfo(page); raw != "" && raw != beforeText {
			return true
		}
		for _, u := range m.collectJobURLs(page) {
			if _, ok := before[u]; !ok {
				return true
			}
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}

func (m *meta) gatherPage(page *rod.Page, seen map[string]struct{}) {
	noProgress := 0
	prev := len(seen)
	for pass := 0; pass < metaPerPageScrolls; pass++ {
		for _, u := range m.collectJobURLs(page) {
			seen[u] = struct{}{}
		}
		if len(seen) == prev {
			noProgress++
		} else {
			noProgress = 0
			prev = len(seen)
		}
		if noProgress >= 2 {
			return
		}
		if el, err := page.Timeout(time.Second).ElementR("button", `/^(see|load|show) more$/i`); err == nil && el != nil {
			_ = el.Click(proto.InputMouseButtonLeft, 1)
		}
		_ = page.Mouse.Scroll(0, 16000, 1)
		time.Sleep(350 * time.Millisecond)
	}
}

func (m *meta) resolveDetailTitle(page *rod.Page, detailURL string) string {
	if err := page.Navigate(detailURL); err != nil {
		return ""
	}
	page.WaitDOMStable(500*time.Millisecond, 0.1)
	m.acceptCookies(page, false)

	res, err := page.Eval(`() => {
		const sels = ["div[class*='_army']", "div._army", "div[role='heading']", "h1", "h2"];
		for (const s of sels) {
			const el = document.querySelector(s);
			if (el && el.innerText && el.innerText.trim()) return el.innerText.trim();
		}
		for (const s of document.querySelectorAll("script[type='application/ld+json']")) {
			try {
				const data = JSON.parse(s.innerText);
				const items = Array.isArray(data) ? data : [data];
				for (const it of items) {
					const t = (it && (it.title || it.name) || '').trim();
					if (t) return t;
				}
			} catch (e) {}
		}
		const og = document.querySelector("meta[property='og:title']");
		if (og && og.content) return og.content;
		return document.title || '';
	}`)
	if err != nil {
		return ""
	}
	return metaCleanTitle(res.Value.Str())
}

func (m *meta) Scrape(ctx context.Context, rawURL string, opts Options) ([]model.Posting, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	origin := fmt.Sprintf("%s://%s", u.Scheme, u.Host)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout*time.Duration(opts.MaxPages+2))
	defer cancel()

	page, done, err := m.renderer.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("meta browser: %w", err)
	}
	defer done()

	m.warmup(page, origin)

	if err := page.Navigate(rawURL); err != nil {
		return nil, fmt.Errorf("meta navigate: %w", err)
	}
	m.acceptCookies(page, false)
	m.ensureResultsReady(page)

	seen := map[string]struct{}{}
	for visited := 1; ; visited++ {
		m.gatherPage(page, seen)

		cur, total, raw := m.paginationInfo(page)
		if total == 0 || (cur > 0 && cur >= total) || visited >= opts.MaxPages {
			break
		}
		before := make(map[string]struct{}, len(seen))
		for k := range seen {
			before[k] = struct{}{}
		}
		if !m.clickNext(page) {
			break
		}
		if !m.waitPageChange(page, raw, before) {
			break
		}
	}

	detail, detailDone, err := m.renderer.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("meta detail page: %w", err)
	}
	defer detailDone()

	var jobs []model.Posting
	for link := range seen {
		title := m.resolveDetailTitle(detail, link)
		if title == "" {
			continue
		}
		jobs = append(jobs, model.Posting{Title: title, Link: urlutil.CanonicalJobURL(link)})
	}
	return jobs, nil
}
