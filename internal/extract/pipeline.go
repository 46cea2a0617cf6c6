// Package extract turns listing-page HTML into job postings without
// any site-specific knowledge. Four strategies run in order of signal
// quality; the first one to find anything wins.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobwatch/internal/model"
)

type strategy struct {
	name string
	run  func(*goquery.Document, string) []model.Posting
}

var pipeline = []strategy{
	{"jsonld", jsonldJobs},
	{"listitem", listitemJobs},
	{"repeated_blocks", repeatedBlockJobs},
	{"strict_anchors", strictAnchorJobs},
}

// Jobs runs the extractor pipeline over parsed HTML. It returns the
// postings and the name of the strategy that produced them, or an
// empty slice and "" when nothing matched.
func Jobs(doc *goquery.Document, baseURL string) ([]model.Posting, string) {
	for _, s := range pipeline {
		if jobs := s.run(doc, baseURL); len(jobs) > 0 {
			return jobs, s.name
		}
	}
	return nil, ""
}

// Parse wraps goquery document construction for callers holding raw
// HTML.
func Parse(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
