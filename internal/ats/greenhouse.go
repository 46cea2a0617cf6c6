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

// Covers boards.greenhouse.io, job-boards.greenhouse.io, and the .eu
// variants of both.
var greenhouseHostRe = regexp.MustCompile(`(?i)(?:^|\.)(?:job-)?boards(?:\.eu)?\.greenhouse\.io$`)

type greenhouseJobsResponse struct {
	Jobs []struct {
		Title       string `json:"title"`
		AbsoluteURL string `json:"absolute_url"`
	} `json:"jobs"`
}

type greenhouse struct {
	http *httpclient.Client

	// endpoints override vendor hosts in tests.
	endpoints []string
}

func newGreenhouse(deps Deps) *greenhouse {
	return &greenhouse{http: deps.HTTP}
}

func (g *greenhouse) Name() string  { return "greenhouse" }
func (g *greenhouse) Renders() bool { return false }

func (g *greenhouse) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && greenhouseHostRe.MatchString(u.Hostname())
}

// Scrape hits the job board API, then legacy board JSON endpoints
// some older boards still serve.
func (g *greenhouse) Scrape(ctx context.Context, rawURL string, opts Options) ([]model.Posting, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	company := companyFromPath(rawURL)
	if company == "" {
		return nil, fmt.Errorf("greenhouse: no company in %s", rawURL)
	}

	endpoints := g.endpoints
	if endpoints == nil {
		region := ""
		if strings.Contains(strings.ToLower(u.Hostname()), ".eu.") {
			region = "-eu"
		}
		endpoints = []string{
			fmt.Sprintf("https://boards-api%s.greenhouse.io/v1/boards/%s/jobs", region, company),
			fmt.Sprintf("https://boards.greenhouse.io/%s.json", company),
			fmt.Sprintf("https://job-boards.eu.greenhouse.io/%s.json", company),
			fmt.Sprintf("https://job-boards.greenhouse.io/%s.json", company),
		}
	}

	var resp greenhouseJobsResponse
	var lastErr error
	for _, endpoint := range endpoints {
		resp = greenhouseJobsResponse{}
		if lastErr = g.http.FetchJSON(ctx, endpoint, nil, &resp); lastErr == nil && len(resp.Jobs) > 0 {
			break
		}
	}
	if len(resp.Jobs) == 0 && lastErr != nil {
		return nil, fmt.Errorf("greenhouse board %s: %w", company, lastErr)
	}

	var jobs []model.Posting
	for _, j := range resp.Jobs {
		title := strings.TrimSpace(j.Title)
		link := strings.TrimSpace(j.AbsoluteURL)
		if title == "" || link == "" {
			continue
		}
		jobs = append(jobs, model.Posting{Title: title, Link: urlutil.CanonicalJobURL(link)})
	}
	return jobs, nil
}
