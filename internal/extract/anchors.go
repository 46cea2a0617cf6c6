package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobwatch/internal/model"
	"jobwatch/internal/urlutil"
)

var ctaHeadings = map[string]struct{}{
	"view job": {}, "learn more": {}, "read more": {}, "apply now": {}, "connect": {},
}

func meaningfulHeading(a *goquery.Selection) bool {
	t := headingByLevel(a)
	if len(t) < 4 {
		return false
	}
	if _, cta := ctaHeadings[strings.ToLower(t)]; cta {
		return false
	}
	alnum := 0
	for _, r := range t {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			alnum++
		}
	}
	return alnum >= 3
}

// strictAnchorJobs is the last-resort extractor: every anchor on the
// page, filtered hard by markers, detail-looking URLs, or a heading
// that reads like a title.
func strictAnchorJobs(doc *goquery.Document, baseURL string) []model.Posting {
	var jobs []model.Posting
	seen := map[string]struct{}{}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		abs := urlutil.Absolute(a.AttrOr("href", ""), baseURL)

		marker := a.AttrOr("data-automation-id", "") == "jobTitle" ||
			strings.Contains(" "+a.AttrOr("class", "")+" ", " jobTitle ")
		if !marker && !urlutil.LooksLikeJobDetailURL(abs) && !meaningfulHeading(a) {
			return
		}

		link := urlutil.CanonicalJobURL(abs)
		if _, dup := seen[link]; dup {
			return
		}

		title := headingByLevel(a)
		if title == "" {
			title = titleFromAria(a)
		}
		if title == "" {
			title = cleanAnchorText(a)
		}
		if title == "" {
			return
		}

		seen[link] = struct{}{}
		jobs = append(jobs, model.Posting{Title: title, Link: link})
	})
	return jobs
}
