package ats

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobwatch/internal/model"
	"jobwatch/internal/render"
	"jobwatch/internal/urlutil"
)

var (
	joinHostRe = regexp.MustCompile(`(?i)(?:^|\.)join\.com$`)
	// Detail paths look like /companies/<org>/<digits>-<slug>.
	joinJobPathRe = regexp.MustCompile(`^/companies/[^/]+/\d{5,}-[A-Za-z0-9-]+/?$`)
)

type join struct {
	renderer *render.Renderer
}

func newJoin(deps Deps) *join {
	return &join{renderer: deps.Renderer}
}

func (j *join) Name() string  { return "join.com" }
func (j *join) Renders() bool { return true }

func (j *join) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && joinHostRe.MatchString(u.Hostname())
}

func joinJobURL(href, baseURL string) string {
	abs := urlutil.Absolute(href, baseURL)
	u, err := url.Parse(abs)
	if err != nil {
		return ""
	}
	if !joinHostRe.MatchString(u.Hostname()) {
		return ""
	}
	if !joinJobPathRe.MatchString(u.Path) {
		return ""
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func firstH1(htmlText string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return ""
	}
	return collapseWhitespace(doc.Find("h1").First().Text())
}

// Scrape renders the company listing (join uses infinite scroll, so
// only the initially rendered tiles are taken) and follows each
// detail page for its h1 title.
func (j *join) Scrape(ctx context.Context, rawURL string, opts Options) ([]model.Posting, error) {
	listingHTML, err := j.renderer.HTML(ctx, render.Request{
		URL:          rawURL,
		WaitSelector: `a[data-testid="Link"][href*="/companies/"][href*="-"]`,
	})
	if err != nil {
		return nil, fmt.Errorf("join render: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingHTML))
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var jobs []model.Posting

	var links []string
	doc.Find(`a[data-testid="Link"][href]`).Each(func(_ int, a *goquery.Selection) {
		link := joinJobURL(a.AttrOr("href", ""), rawURL)
		if link == "" {
			return
		}
		link = urlutil.CanonicalJobURL(link)
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	for _, link := range links {
		detailHTML, err := j.renderer.HTML(ctx, render.Request{URL: link, WaitSelector: "h1"})
		if err != nil {
			continue
		}
		title := firstH1(detailHTML)
		if title == "" {
			continue
		}
		jobs = append(jobs, model.Posting{Title: title, Link: link})
	}
	return jobs, nil
}
