package urlutil

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Path segments that strongly indicate a non-detail page.
var badPathSegments = map[string]struct{}{
	"saved": {}, "alerts": {}, "recommendations": {}, "dashboard": {},
	"signin": {}, "sign-in": {}, "login": {}, "help": {}, "support": {},
	"about": {}, "privacy": {}, "terms": {}, "eeo": {}, "how-we-hire": {},
	"legal": {}, "saved-jobs": {},
}

// Known ATS hosts. Conservative: fewer false positives beats coverage.
var atsHostPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:^|\.)jobs\.lever\.co$`),
	regexp.MustCompile(`(?i)(?:^|\.)boards\.greenhouse\.io$`),
	regexp.MustCompile(`(?i)(?:^|\.)smartrecruiters\.com$`),
	regexp.MustCompile(`(?i)(?:^|\.)workable\.com$`),
	regexp.MustCompile(`(?i)(?:^|\.)jobvite\.com$`),
	regexp.MustCompile(`(?i)(?:^|\.)ashbyhq\.com$`),
	regexp.MustCompile(`(?i)(?:^|\.)(?:[a-z0-9-]+\.wd\d+\.)?myworkdayjobs\.com$`),
}

// URL path shapes of actual job detail pages.
var jobDetailPatterns = []*regexp.Regexp{
	// Apple-style details/apply with a long numeric id
	regexp.MustCompile(`(?i)(^|/)(?:[a-z]{2}-[a-z]{2}/)?details/\d{6,}(?:-\d+)?(?:/|$)`),
	regexp.MustCompile(`(?i)(^|/)(?:app/)?[a-z]{2}-[a-z]{2}/apply/\d{6,}(?:-\d+)?(?:/|$)`),

	// Generic numeric ids under common sections
	regexp.MustCompile(`(?i)(^|/)jobs?/results?/\d`),
	regexp.MustCompile(`(?i)(^|/)careers?/.*/\d`),
	regexp.MustCompile(`(?i)(^|/)positions?/\d`),
	regexp.MustCompile(`(?i)(^|/)vacanc(?:y|ies)/\d`),

	// Req-id slug at the end of the path
	regexp.MustCompile(`(?i)(^|/)job/[^/]+/[^/]+_(?:JR|R|REQ)[-_]?\d{4,}(?:-\d+)?(?:/|$)`),

	// Oracle Cloud Recruiting detail pages
	regexp.MustCompile(`(?i)(^|/)(?:[a-z]{2}(?:-[a-z]{2})?/)?sites?/jobsearch/job/\d{4,}(?:/|$)`),

	// Workday cxs/wday canonical detail URL
	regexp.MustCompile(`(?i)(^|/)wday/(?:jobs|cxs)/[^/]+/[^/]+/job/[^/]+_(?:JR|R|REQ)[-_]?\d{4,}(?:-\d+)?(?:/|$)`),

	// Locale + singular "job" + human slug
	regexp.MustCompile(`(?i)(^|/)(?:[a-z]{2}(?:-[a-z]{2})?/)?job/[\w-]{6,}(?:/|$)`),
}

var jobSlugFallbackRe = regexp.MustCompile(`(?i)/jobs?/[\w-]{4,}(/|$)`)

func hostMatchesATS(host string) bool {
	for _, p := range atsHostPatterns {
		if p.MatchString(host) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func pathSegments(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// LooksLikeJobDetailURL reports whether an absolute URL looks like a
// job detail page rather than a listing or category page. It errs on
// the conservative side.
func LooksLikeJobDetailURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	segs := pathSegments(path)
	for _, s := range segs {
		if _, bad := badPathSegments[strings.ToLower(s)]; bad {
			return false
		}
	}

	for _, p := range jobDetailPatterns {
		if p.MatchString(path) {
			return true
		}
	}

	// ATS hosts commonly use /<org>/<uuid> or a numeric id as the leaf.
	if hostMatchesATS(u.Hostname()) {
		if len(segs) >= 2 {
			leaf := segs[len(segs)-1]
			if isUUID(leaf) || isNumeric(leaf) {
				return true
			}
		}
		for _, s := range segs {
			switch strings.ToLower(s) {
			case "j", "job", "jobs", "openings":
				return true
			}
		}
	}

	// Narrow fallback: a /job(s)/<slug> path that is not pagination.
	if strings.Contains(path, "job") && !strings.Contains(strings.ToLower(raw), "page=") {
		if jobSlugFallbackRe.MatchString(path) {
			return true
		}
	}

	return false
}
