package ats

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"jobwatch/internal/model"
	"jobwatch/internal/render"
	"jobwatch/internal/urlutil"
)

var (
	msJobItemRe = regexp.MustCompile(`(?i)\bJob item\s+(\d{6,})\b`)
	msDigitsRe  = regexp.MustCompile(`(\d{6,})`)
)

const msItemSelector = `#job-search-app [role="listitem"].ms-List-cell, div[role="listitem"].ms-List-cell`

type microsoft struct {
	renderer *render.Renderer
}

func newMicrosoft(deps Deps) *microsoft {
	return &microsoft{renderer: deps.Renderer}
}

func (m *microsoft) Name() string  { return "microsoft" }
func (m *microsoft) Renders() bool { return true }

func (m *microsoft) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), "careers.microsoft.com")
}

// slugifyMSTitle follows the site's own slug rule: spaces become
// dashes, everything outside [A-Za-z0-9-] is percent-encoded, case
// and existing dashes are preserved.
func slugifyMSTitle(title string) string {
	t := strings.ReplaceAll(strings.TrimSpace(title), " ", "-")
	var b strings.Builder
	for i := 0; i < len(t); i++ {
		c := t[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') || c == '-' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// msJobID digs the requisition id out of a card: an aria-label of the
// form "Job item NNNNNNN" is the reliable source; otherwise any
// descendant attribute holding a 6+ digit run, preferring 6-8 digit
// candidates.
func msJobID(item *goquery.Selection) string {
	id := ""
	item.Find("[aria-label]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if m := msJobItemRe.FindStringSubmatch(el.AttrOr("aria-label", "")); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	if id != "" {
		return id
	}

	type cand struct {
		score  int
		digits string
	}
	var cands []cand
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				for _, m := range msDigitsRe.FindAllStringSubmatch(attr.Val, -1) {
					digits := m[1]
					score := len(digits)
					if len(digits) < 6 || len(digits) > 8 {
						score += 100
					}
					cands = append(cands, cand{score: score, digits: digits})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range item.Nodes {
		walk(n)
	}
	best := cand{score: 1 << 30}
	for _, c := range cands {
		if c.score < best.score {
			best = c
		}
	}
	if best.digits == "" {
		return ""
	}
	return best.digits
}

func setPageParam(rawURL, key string, page int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// Scrape renders search pages pg=N and composes canonical detail
// URLs from (job id, slugified title). A page that adds no new ids
// ends the walk.
func (m *microsoft) Scrape(ctx context.Context, rawURL string, opts Options) ([]model.Posting, error) {
	startPg := 1
	if u, err := url.Parse(rawURL); err == nil {
		if n, err := strconv.Atoi(u.Query().Get("pg")); err == nil && n > 0 {
			startPg = n
		}
	}

	seen := map[string]struct{}{}
	var jobs []model.Posting

	for i := 0; i < opts.MaxPages; i++ {
		pageURL := setPageParam(rawURL, "pg", startPg+i)
		htmlText, err := m.renderer.HTML(ctx, render.Request{
			URL:          pageURL,
			WaitSelector: `#job-search-app [role="listitem"], [data-automationid="ListCell"]`,
		})
		if err != nil {
			if len(jobs) > 0 {
				break
			}
			return nil, fmt.Errorf("microsoft render %s: %w", pageURL, err)
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
		if err != nil {
			return nil, err
		}

		items := doc.Find(msItemSelector)
		if items.Length() == 0 {
			break
		}

		added := 0
		items.Each(func(_ int, item *goquery.Selection) {
			id := msJobID(item)
			title := collapseWhitespace(item.Find("h2").First().Text())
			if id == "" || title == "" {
				return
			}
			if _, dup := seen[id]; dup {
				return
			}
			seen[id] = struct{}{}
			link := fmt.Sprintf("https://jobs.careers.microsoft.com/global/en/job/%s/%s", id, slugifyMSTitle(title))
			jobs = append(jobs, model.Posting{Title: title, Link: urlutil.CanonicalJobURL(link)})
			added++
		})
		if added == 0 {
			break
		}
	}
	return jobs, nil
}

var wsRe = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}
