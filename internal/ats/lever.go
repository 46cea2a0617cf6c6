package ats

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"jobwatch/internal/httpclient"
	"jobwatch/internal/model"
	"jobwatch/internal/urlutil"
)

var leverHostRe = regexp.MustCompile(`(?i)(?:^|\.)jobs(?:\.eu)?\.lever\.co$`)

const leverPageSize = 50

// leverFacetKeys are hosted-page query facets the postings API
// understands; they are forwarded as-is.
var leverFacetKeys = map[string]string{
	"location":   "location",
	"locations":  "location",
	"department": "department",
	"team":       "team",
	"commitment": "commitment",
	"level":      "level",
}

type leverPosting struct {
	Text      string            `json:"text"`
	Title     string            `json:"title"`
	HostedURL string            `json:"hostedUrl"`
	ApplyURL  string            `json:"applyUrl"`
	URL       string            `json:"url"`
	URLs      map[string]string `json:"urls"`
}

type lever struct {
	http *httpclient.Client

	// Regional API bases, overridable for tests.
	usBase string
	euBase string
}

func newLever(deps Deps) *lever {
	return &lever{
		http:   deps.HTTP,
		usBase: "https://api.lever.co/v0/postings",
		euBase: "https://api.eu.lever.co/v0/postings",
	}
}

func (l *lever) Name() string  { return "lever" }
func (l *lever) Renders() bool { return false }

func (l *lever) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && leverHostRe.MatchString(u.Hostname())
}

func (p *leverPosting) title() string {
	if t := strings.TrimSpace(p.Text); t != "" {
		return t
	}
	return strings.TrimSpace(p.Title)
}

func (p *leverPosting) link() string {
	for _, u := range []string{p.HostedURL, p.ApplyURL, p.URL, p.URLs["show"]} {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

func companyFromPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			return s
		}
	}
	return ""
}

// leverFacets forwards recognised board-page filters to the API.
func leverFacets(rawURL string) url.Values {
	out := url.Values{}
	u, err := url.Parse(rawURL)
	if err != nil {
		return out
	}
	for key, vals := range u.Query() {
		apiKey, ok := leverFacetKeys[strings.ToLower(key)]
		if !ok {
			continue
		}
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				out.Add(apiKey, v)
			}
		}
	}
	return out
}

func (l *lever) fetchPage(ctx context.Context, base, company string, facets url.Values, skip int) ([]leverPosting, error) {
	q := url.Values{}
	for k, vs := range facets {
		q[k] = vs
	}
	q.Set("mode", "json")
	q.Set("limit", fmt.Sprint(leverPageSize))
	q.Set("skip", fmt.Sprint(skip))

	endpoint := fmt.Sprintf("%s/%s?%s", base, url.PathEscape(company), q.Encode())
	var page []leverPosting
	if err := l.http.FetchJSON(ctx, endpoint, nil, &page); err != nil {
		return nil, err
	}
	return page, nil
}

// Scrape pages through the postings API with skip/limit. The region
// matching the board host is tried first; an error or empty first
// page falls back to the other region, since boards migrate.
func (l *lever) Scrape(ctx context.Context, rawURL string, opts Options) ([]model.Posting, error) {
	company := companyFromPath(rawURL)
	if company == "" {
		return nil, fmt.Errorf("lever: no company in %s", rawURL)
	}
	facets := leverFacets(rawURL)

	bases := []string{l.usBase, l.euBase}
	if u, err := url.Parse(rawURL); err == nil && strings.Contains(strings.ToLower(u.Hostname()), ".eu.") {
		bases = []string{l.euBase, l.usBase}
	}

	var postings []leverPosting
	var lastErr error
	for _, base := range bases {
		postings = postings[:0]
		lastErr = nil
		for skip := 0; skip < leverPageSize*opts.MaxPages; skip += leverPageSize {
			page, err := l.fetchPage(ctx, base, company, facets, skip)
			if err != nil {
				lastErr = err
				break
			}
			postings = append(postings, page...)
			if len(page) < leverPageSize {
				break
			}
		}
		if lastErr == nil && len(postings) > 0 {
			break
		}
	}
	if lastErr != nil && len(postings) == 0 {
		return nil, fmt.Errorf("lever postings for %s: %w", company, lastErr)
	}

	var jobs []model.Posting
	for i := range postings {
		p := &postings[i]
		title, link := p.title(), p.link()
		if title == "" || link == "" {
			continue
		}
		jobs = append(jobs, model.Posting{Title: title, Link: urlutil.CanonicalJobURL(link)})
	}
	return jobs, nil
}
