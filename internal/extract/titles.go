package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// markerAnchorSel matches anchors carrying the Workday-style job title
// automation marker.
const markerAnchorSel = `a[data-automation-id=jobTitle][href]`

var (
	spaceRe     = regexp.MustCompile(`\s+`)
	ariaPrefix  = regexp.MustCompile(`(?i)^(?:learn more about|view details for)\s+(.+)$`)
	ctaAnchorRe = regexp.MustCompile(`(?i)^(learn more|help|sign in|bookmark|share|apply)$`)
)

// genericAriaLabels are navigation chrome, not job titles.
var genericAriaLabels = map[string]struct{}{
	"learn more": {}, "help": {}, "sign in": {}, "bookmark": {},
	"share": {}, "apply": {}, "view job": {}, "apply now": {}, "connect": {},
}

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// maxHeadingText returns the longest heading text under the node.
// Cards often carry both a job title heading and a short section
// heading; length is the better tiebreak than level here.
func maxHeadingText(s *goquery.Selection) string {
	best := ""
	s.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, h *goquery.Selection) {
		if t := collapseSpace(h.Text()); len(t) > len(best) {
			best = t
		}
	})
	return best
}

// headingByLevel returns the first non-empty heading text preferring
// h1 over h2 over deeper levels.
func headingByLevel(s *goquery.Selection) string {
	for _, tag := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		t := collapseSpace(s.Find(tag).First().Text())
		if t != "" {
			return t
		}
	}
	return ""
}

func titleFromAria(s *goquery.Selection) string {
	aria := strings.TrimSpace(s.AttrOr("aria-label", ""))
	if aria == "" {
		return ""
	}
	if m := ariaPrefix.FindStringSubmatch(aria); m != nil {
		return strings.TrimSpace(m[1])
	}
	if _, generic := genericAriaLabels[strings.ToLower(aria)]; !generic {
		return aria
	}
	return ""
}

func cleanAnchorText(s *goquery.Selection) string {
	txt := collapseSpace(s.Text())
	if txt == "" {
		txt = strings.TrimSpace(s.AttrOr("title", ""))
	}
	if ctaAnchorRe.MatchString(txt) {
		return ""
	}
	return txt
}

// titleFromAttrs pulls a title out of attributes some card layouts
// stash it in.
func titleFromAttrs(s *goquery.Selection) string {
	for _, attr := range []string{"data-component-link", "aria-label", "title"} {
		v := strings.TrimSpace(s.AttrOr(attr, ""))
		if v == "" {
			continue
		}
		if m := ariaPrefix.FindStringSubmatch(v); m != nil {
			return strings.TrimSpace(m[1])
		}
		return v
	}
	return ""
}

var genericClassTokens = map[string]struct{}{
	"row": {}, "rows": {}, "col": {}, "cols": {}, "container": {},
	"grid": {}, "section": {}, "wrapper": {}, "content": {},
}

// classKey builds the sorted class-set key used to group repeated
// sibling blocks.
func classKey(s *goquery.Selection) string {
	fields := strings.Fields(s.AttrOr("class", ""))
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

func genericClassKey(key string) bool {
	if key == "" {
		return true
	}
	for _, tok := range strings.Fields(key) {
		if _, ok := genericClassTokens[tok]; ok {
			return true
		}
	}
	return false
}
