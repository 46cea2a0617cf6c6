package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobwatch/internal/model"
	"jobwatch/internal/urlutil"
)

var jobListLabelWords = []string{"job", "career", "vacan", "opening", "position"}

func isJobList(list *goquery.Selection, baseURL string) bool {
	label := strings.ToLower(list.AttrOr("aria-label", ""))
	for _, w := range jobListLabelWords {
		if strings.Contains(label, w) {
			return true
		}
	}
	if list.Find(markerAnchorSel).Length() >= 2 {
		return true
	}
	count := 0
	detail := false
	list.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		abs := urlutil.Absolute(a.AttrOr("href", ""), baseURL)
		if urlutil.LooksLikeJobDetailURL(abs) {
			count++
			if count >= 2 {
				detail = true
				return false
			}
		}
		return true
	})
	return detail
}

// listitemJobs extracts from explicit list markup. When no list on
// the page looks job-like, every list item is still considered, since
// some boards label nothing.
func listitemJobs(doc *goquery.Document, baseURL string) []model.Posting {
	var candidates []*goquery.Selection
	doc.Find("ul, ol").Each(func(_ int, list *goquery.Selection) {
		if isJobList(list, baseURL) {
			candidates = append(candidates, list)
		}
	})

	var items *goquery.Selection
	if len(candidates) > 0 {
		items = candidates[0].Find(`li, div[role="listitem"]`)
		for _, list := range candidates[1:] {
			items = items.AddSelection(list.Find(`li, div[role="listitem"]`))
		}
	} else {
		items = doc.Find(`li, div[role="listitem"]`)
	}

	var jobs []model.Posting
	seen := map[string]struct{}{}

	items.Each(func(_ int, li *goquery.Selection) {
		chosen := li.Find(markerAnchorSel).First()
		link := ""
		if chosen.Length() > 0 {
			link = urlutil.Absolute(chosen.AttrOr("href", ""), baseURL)
		} else {
			li.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
				abs := urlutil.Absolute(a.AttrOr("href", ""), baseURL)
				if urlutil.LooksLikeJobDetailURL(abs) {
					chosen = a
					link = abs
					return false
				}
				return true
			})
		}
		if chosen.Length() == 0 || link == "" {
			return
		}
		link = urlutil.CanonicalJobURL(link)
		if _, dup := seen[link]; dup {
			return
		}

		title := maxHeadingText(li)
		if title == "" {
			title = titleFromAria(chosen)
		}
		if title == "" {
			title = cleanAnchorText(chosen)
		}
		if title == "" {
			li.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
				if t := titleFromAria(a); t != "" {
					title = t
					return false
				}
				if t := cleanAnchorText(a); t != "" {
					title = t
					return false
				}
				return true
			})
		}
		if title == "" {
			li.Find("span").EachWithBreak(func(_ int, sp *goquery.Selection) bool {
				if strings.Contains(sp.AttrOr("class", ""), "title") {
					if t := collapseSpace(sp.Text()); t != "" {
						title = t
						return false
					}
				}
				return true
			})
		}
		if title == "" {
			return
		}

		seen[link] = struct{}{}
		jobs = append(jobs, model.Posting{Title: title, Link: link})
	})
	return jobs
}
