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

var (
	workdayHostRe   = regexp.MustCompile(`(?i)(?:^|\.)(?:wd\d+\.)?myworkdayjobs\.com$`)
	workdayTenantRe = regexp.MustCompile(`(?i)^([^.]+)\.wd\d+\.myworkdayjobs\.com$`)
	localeSegRe     = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)
)

// workdayFacetKeys whitelists query keys forwarded as applied facets.
var workdayFacetKeys = map[string]struct{}{
	"locations": {}, "location": {}, "locationhierarchy1": {}, "locationhierarchy2": {},
	"locationcity": {}, "locationstate": {}, "timetype": {}, "workersubtype": {},
	"jobfamilygroup": {}, "jobfamily": {}, "category": {},
}

const workdayPageSize = 20

type workdayJobsResponse struct {
	Total       int `json:"total"`
	TotalFound  int `json:"totalFound"`
	JobPostings []struct {
		Title                string `json:"title"`
		TitleSimple          string `json:"titleSimple"`
		ExternalPath         string `json:"externalPath"`
		CanonicalPositionURL string `json:"canonicalPositionUrl"`
	} `json:"jobPostings"`
}

type workday struct {
	http *httpclient.Client

	// endpointOverride replaces the derived cxs endpoint in tests.
	endpointOverride string
}

func newWorkday(deps Deps) *workday {
	return &workday{http: deps.HTTP}
}

func (w *workday) Name() string  { return "workday" }
func (w *workday) Renders() bool { return false }

func (w *workday) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && workdayHostRe.MatchString(u.Hostname())
}

// workdaySiteParts recovers (host, tenant, careerSite) from the two
// URL shapes Workday serves:
//
//	tenant.wd5.myworkdayjobs.com/[locale/]CareerSite
//	myworkdayjobs.com/[locale/]tenant/CareerSite
func workdaySiteParts(rawURL string) (host, tenant, site string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", "", false
	}
	host = u.Host

	var segs []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}

	if m := workdayTenantRe.FindStringSubmatch(u.Hostname()); m != nil {
		tenant = m[1]
	}

	i := 0
	if len(segs) > i && localeSegRe.MatchString(segs[i]) {
		i++
	}
	if tenant != "" {
		if len(segs) > i {
			site = segs[i]
		}
	} else {
		if len(segs) > i {
			tenant = segs[i]
		}
		if len(segs) > i+1 {
			site = segs[i+1]
		}
	}

	if host == "" || tenant == "" || site == "" {
		return "", "", "", false
	}
	return host, tenant, site, true
}

func workdayAppliedFacets(rawURL string) map[string][]string {
	applied := map[string][]string{}
	u, err := url.Parse(rawURL)
	if err != nil {
		return applied
	}
	for k, vs := range u.Query() {
		kl := strings.ToLower(k)
		if _, ok := workdayFacetKeys[kl]; !ok {
			continue
		}
		for _, v := range vs {
			if v != "" {
				applied[kl] = append(applied[kl], v)
			}
		}
	}
	return applied
}

// Scrape walks the cxs jobs endpoint with limit/offset, stopping at
// the reported total.
func (w *workday) Scrape(ctx context.Context, rawURL string, opts Options) ([]model.Posting, error) {
	host, tenant, site, ok := workdaySiteParts(rawURL)
	if !ok {
		return nil, fmt.Errorf("workday: cannot derive tenant/site from %s", rawURL)
	}
	endpoint := w.endpointOverride
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s/wday/cxs/%s/%s/jobs", host, tenant, site)
	}
	applied := workdayAppliedFacets(rawURL)

	seen := map[string]struct{}{}
	var jobs []model.Posting

	offset := 0
	for page := 0; page < opts.MaxPages; page++ {
		payload := map[string]any{
			"appliedFacets": applied,
			"limit":         workdayPageSize,
			"offset":        offset,
			"searchText":    "",
		}
		var resp workdayJobsResponse
		if err := w.http.PostJSON(ctx, endpoint, nil, payload, &resp); err != nil {
			return nil, fmt.Errorf("workday jobs %s: %w", endpoint, err)
		}
		if len(resp.JobPostings) == 0 {
			break
		}

		for _, p := range resp.JobPostings {
			title := strings.TrimSpace(p.Title)
			if title == "" {
				title = strings.TrimSpace(p.TitleSimple)
			}
			path := strings.TrimSpace(p.ExternalPath)
			if path == "" {
				path = strings.TrimSpace(p.CanonicalPositionURL)
			}
			if title == "" || path == "" {
				continue
			}
			link := urlutil.CanonicalJobURL(urlutil.Absolute(path, "https://"+host+"/"))
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			jobs = append(jobs, model.Posting{Title: title, Link: link})
		}

		total := resp.Total
		if total == 0 {
			total = resp.TotalFound
		}
		offset += workdayPageSize
		if total > 0 && offset >= total {
			break
		}
	}
	return jobs, nil
}
