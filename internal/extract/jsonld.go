package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobwatch/internal/model"
	"jobwatch/internal/urlutil"
)

// flattenNodes normalises an LD+JSON payload into a flat node list,
// following @graph, mainEntity, and item wrappers.
func flattenNodes(payload any) []map[string]any {
	var nodes []map[string]any
	var add func(any)
	add = func(v any) {
		switch n := v.(type) {
		case map[string]any:
			nodes = append(nodes, n)
			if g, ok := n["@graph"].([]any); ok {
				for _, e := range g {
					add(e)
				}
			}
			if m, ok := n["mainEntity"].(map[string]any); ok {
				add(m)
			}
			if it, ok := n["item"].(map[string]any); ok {
				add(it)
			}
		case []any:
			for _, e := range n {
				add(e)
			}
		}
	}
	add(payload)
	return nodes
}

func isJobPosting(node map[string]any) bool {
	switch t := node["@type"].(type) {
	case string:
		return t == "JobPosting"
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s == "JobPosting" {
				return true
			}
		}
	}
	return false
}

func stringField(node map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := node[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// jsonldJobs pulls JobPosting nodes out of inline structured data.
// Malformed script payloads are skipped quietly; later extractors
// still get their turn.
func jsonldJobs(doc *goquery.Document, baseURL string) []model.Posting {
	var jobs []model.Posting
	seen := map[string]struct{}{}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return
		}
		for _, node := range flattenNodes(payload) {
			if !isJobPosting(node) {
				continue
			}
			title := stringField(node, "title", "name")
			rawURL := stringField(node, "url", "applicationUrl")
			if title == "" || rawURL == "" {
				continue
			}
			abs := urlutil.Absolute(rawURL, baseURL)
			if !urlutil.LooksLikeJobDetailURL(abs) {
				continue
			}
			link := urlutil.CanonicalJobURL(abs)
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			jobs = append(jobs, model.Posting{Title: title, Link: link})
		}
	})
	return jobs
}
