package extract

import (
	"github.com/PuerkitoBio/goquery"

	"jobwatch/internal/model"
	"jobwatch/internal/urlutil"
)

type blockKey struct {
	tag      string
	classKey string
}

const minBlockSiblings = 3

// repeatedBlockJobs finds card grids with no list semantics: groups
// of direct siblings sharing a tag and class set are treated as an
// item prototype, and every matching element in the document becomes
// a candidate card.
func repeatedBlockJobs(doc *goquery.Document, baseURL string) []model.Posting {
	prototypes := map[blockKey]struct{}{}

	doc.Find("div, section, main, article").Each(func(_ int, container *goquery.Selection) {
		groups := map[blockKey]int{}
		container.Children().Each(func(_ int, child *goquery.Selection) {
			tag := goquery.NodeName(child)
			key := blockKey{tag: tag, classKey: classKey(child)}
			if tag == "" || genericClassKey(key.classKey) {
				return
			}
			groups[key]++
		})
		for key, n := range groups {
			if n >= minBlockSiblings {
				prototypes[key] = struct{}{}
			}
		}
	})
	if len(prototypes) == 0 {
		return nil
	}

	var jobs []model.Posting
	seen := map[string]struct{}{}

	for key := range prototypes {
		doc.Find(key.tag).Each(func(_ int, item *goquery.Selection) {
			if classKey(item) != key.classKey {
				return
			}
			a := item.Find(markerAnchorSel).First()
			if a.Length() == 0 {
				a = item.Find("a.posting-title[href]").First()
			}
			if a.Length() == 0 {
				a = item.Find("a[href]").First()
			}
			if a.Length() == 0 {
				return
			}

			link := urlutil.Absolute(a.AttrOr("href", ""), baseURL)
			if !urlutil.LooksLikeJobDetailURL(link) {
				return
			}
			link = urlutil.CanonicalJobURL(link)
			if _, dup := seen[link]; dup {
				return
			}

			title := maxHeadingText(item)
			if title == "" {
				title = titleFromAttrs(a)
			}
			if title == "" {
				title = cleanAnchorText(a)
			}
			if title == "" {
				title = maxHeadingText(a)
			}
			if title == "" {
				return
			}

			seen[link] = struct{}{}
			jobs = append(jobs, model.Posting{Title: title, Link: link})
		})
	}
	return jobs
}
