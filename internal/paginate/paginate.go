// Package paginate discovers the next listing page: first an explicit
// next link in the DOM, then incrementing a known paging parameter on
// the current URL.
package paginate

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobwatch/internal/urlutil"
)

// altPageKeys are tried after "page" when building the next URL.
var altPageKeys = []string{"p", "pg", "pageNo", "pageNumber", "currentPage"}

var offsetKeys = []string{"start", "offset", "from", "startrow"}

var (
	nextLabelRe = regexp.MustCompile(`(?i)\b(next|go to next page|weiter|suivant|siguiente)\b`)
	pageLabelRe = regexp.MustCompile(`(?i)page\s+(\d+)`)
	// "1-20 of 25" style results window; tolerates unicode dashes.
	resultsWindowRe = regexp.MustCompile(`(?i)(\d+)\s*[-\x{2010}\x{2011}\x{2012}\x{2013}]\s*(\d+)\s*of\s*(\d+)`)
	anyParamRe      = regexp.MustCompile(`[?&](\w+)=\d+\b`)
)

func setQueryParam(raw, key string, value int) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, strconv.Itoa(value))
	u.RawQuery = q.Encode()
	return u.String()
}

// currentPageFromDOM reads the page number out of pagination inputs
// or aria-live announcements.
func currentPageFromDOM(doc *goquery.Document) (int, bool) {
	inp := doc.Find(`input[data-autom="paginationPageInput"], input.rc-pagination-pageinput`).First()
	if v, ok := inp.Attr("value"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, true
		}
	}
	found := 0
	doc.Find("[aria-live]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if m := pageLabelRe.FindStringSubmatch(el.Text()); m != nil {
			found, _ = strconv.Atoi(m[1])
			return false
		}
		return true
	})
	return found, found > 0
}

func totalPagesFromDOM(doc *goquery.Document) (int, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(doc.Find(".rc-pagination-total-pages").First().Text()), ",", "")
	n, err := strconv.Atoi(s)
	return n, err == nil && n > 0
}

// resultsWindow parses an "a-b of c" label into (pagesize, total).
func resultsWindow(doc *goquery.Document) (int, int, bool) {
	text := doc.Find("body").Text()
	m := resultsWindowRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	total, _ := strconv.Atoi(m[3])
	if end < start {
		return 0, total, false
	}
	return end - start + 1, total, true
}

func anchorDisabled(a *goquery.Selection) bool {
	switch strings.ToLower(a.AttrOr("aria-disabled", "")) {
	case "true", "1":
		return true
	}
	for _, c := range strings.Fields(a.AttrOr("class", "")) {
		if c == "disabled" {
			return true
		}
	}
	return false
}

// explicitNextHref looks for a clickable next link.
func explicitNextHref(doc *goquery.Document, currentPage int, haveCurrent bool) (string, bool) {
	if href, ok := doc.Find(`a[rel*="next"]`).First().Attr("href"); ok {
		return href, true
	}

	next := ""
	doc.Find("a[aria-label][href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !nextLabelRe.MatchString(a.AttrOr("aria-label", "")) {
			return true
		}
		if anchorDisabled(a) {
			return true
		}
		next = a.AttrOr("href", "")
		return false
	})
	if next != "" {
		return next, true
	}

	btn := doc.Find(`[data-analytics-pagination="next"] a[href], .VfPpkd-wZVHld-gruSEe a[href][aria-label*="next"]`).First()
	if href, ok := btn.Attr("href"); ok {
		return href, true
	}

	nav := doc.Find(`nav[aria-label*="pagination"]`).First()
	if nav.Length() > 0 {
		cand := nav.Find(`a[href][rel*="next"], a[href][aria-label*="next"]`).First()
		if href, ok := cand.Attr("href"); ok {
			return href, true
		}
	}

	// Last resort: lowest ?page=k beyond the current page among pager
	// anchors.
	keys := append([]string{"page"}, altPageKeys...)
	type cand struct {
		k    int
		href string
	}
	var cands []cand
	doc.Find(`nav[aria-label*="pagination"] a[aria-label], ul.pagination a[aria-label], .pagination a[aria-label]`).
		Each(func(_ int, a *goquery.Selection) {
			href := a.AttrOr("href", "")
			for _, key := range keys {
				re := regexp.MustCompile(`[?&]` + regexp.QuoteMeta(key) + `=(\d+)\b`)
				m := re.FindStringSubmatch(href)
				if m == nil {
					continue
				}
				k, _ := strconv.Atoi(m[1])
				if !haveCurrent || k > currentPage {
					cands = append(cands, cand{k: k, href: href})
				}
				break
			}
		})
	if len(cands) > 0 {
		sort.Slice(cands, func(i, j int) bool { return cands[i].k < cands[j].k })
		return cands[0].href, true
	}
	return "", false
}

// NextPageURL returns the absolute URL of the next listing page, or
// "" when the document gives no way forward.
func NextPageURL(doc *goquery.Document, currentURL string) string {
	currentPage, haveCurrent := currentPageFromDOM(doc)

	if href, ok := explicitNextHref(doc, currentPage, haveCurrent); ok {
		if abs := urlutil.Absolute(href, currentURL); urlutil.IsHTTPURL(abs) {
			return abs
		}
	}

	totalPages, haveTotal := totalPagesFromDOM(doc)

	u, err := url.Parse(currentURL)
	if err != nil {
		return ""
	}
	q := u.Query()

	for _, key := range append([]string{"page"}, altPageKeys...) {
		if !q.Has(key) {
			continue
		}
		cur, err := strconv.Atoi(q.Get(key))
		if err != nil {
			continue
		}
		next := cur + 1
		if haveTotal && next > totalPages {
			return ""
		}
		return setQueryParam(currentURL, key, next)
	}

	for _, key := range offsetKeys {
		if !q.Has(key) {
			continue
		}
		pagesize, total, ok := resultsWindow(doc)
		if !ok || pagesize <= 0 {
			continue
		}
		cur, err := strconv.Atoi(q.Get(key))
		if err != nil {
			cur = 0
		}
		next := cur + pagesize
		if total > 0 && next >= total {
			return ""
		}
		return setQueryParam(currentURL, key, next)
	}

	// DOM shows page position but the URL carries no recognised key:
	// borrow the parameter name from any numbered anchor.
	if haveCurrent && (!haveTotal || currentPage < totalPages) {
		borrowed := ""
		doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if m := anyParamRe.FindStringSubmatch(a.AttrOr("href", "")); m != nil {
				borrowed = m[1]
				return false
			}
			return true
		})
		if borrowed != "" {
			return setQueryParam(currentURL, borrowed, currentPage+1)
		}
	}
	return ""
}
