package ats

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"jobwatch/internal/model"
	"jobwatch/internal/render"
	"jobwatch/internal/urlutil"
)

// Proton's board lives on the Greenhouse EU host but its rows carry a
// location column worth filtering on, so it gets its own adapter
// ahead of the generic Greenhouse one.
var protonHostRe = regexp.MustCompile(`(?i)(?:^|\.)job-boards\.eu\.greenhouse\.io$`)

var locationSplitRe = regexp.MustCompile(`[;,/|\x{2022}\x{00b7}]+`)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

const protonMaxEditDistance = 2

type proton struct {
	renderer *render.Renderer
}

func newProton(deps Deps) *proton {
	return &proton{renderer: deps.Renderer}
}

func (p *proton) Name() string  { return "proton" }
func (p *proton) Renders() bool { return true }

func (p *proton) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if !protonHostRe.MatchString(u.Hostname()) {
		return false
	}
	path := strings.TrimRight(u.Path, "/")
	return path == "/proton" || strings.HasPrefix(u.Path, "/proton/")
}

// normTerm folds case and accents and collapses everything non
// alphanumeric, so "Zürich" matches "zurich".
func normTerm(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(s) {
		// Drop combining marks left over from decomposition.
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.ToLower(b.String())
	return strings.TrimSpace(nonAlnumRe.ReplaceAllString(out, " "))
}

func splitLocations(text string) []string {
	var out []string
	for _, part := range locationSplitRe.Split(text, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// damerauLevenshteinCapped computes edit distance with adjacent
// transpositions, bailing out at maxDist+1 as soon as the whole row
// exceeds the cap.
func damerauLevenshteinCapped(a, b string, maxDist int) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(rb)-len(ra) > maxDist {
		return maxDist + 1
	}

	n := len(rb)
	prevPrev := make([]int, n+1)
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		rowBest := maxDist + 1
		for j := 1; j <= n; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			v := min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				if t := prevPrev[j-2] + 1; t < v {
					v = t
				}
			}
			curr[j] = v
			if v < rowBest {
				rowBest = v
			}
		}
		if rowBest > maxDist {
			return maxDist + 1
		}
		prevPrev, prev, curr = prev, curr, prevPrev
	}
	return prev[n]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// anyFuzzyLocationMatch accepts a row when any of its locations
// matches any term by substring either way or within the edit cap.
func anyFuzzyLocationMatch(locations, terms []string) bool {
	var normTerms []string
	for _, t := range terms {
		if nt := normTerm(t); nt != "" {
			normTerms = append(normTerms, nt)
		}
	}
	if len(normTerms) == 0 {
		return true
	}
	for _, loc := range locations {
		nl := normTerm(loc)
		if nl == "" {
			continue
		}
		for _, nt := range normTerms {
			if strings.Contains(nl, nt) || strings.Contains(nt, nl) {
				return true
			}
			if damerauLevenshteinCapped(nt, nl, protonMaxEditDistance) <= protonMaxEditDistance {
				return true
			}
		}
	}
	return false
}

// protonLocationTerms reads location filters off the board URL query.
func protonLocationTerms(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var terms []string
	q := u.Query()
	for _, k := range []string{"location", "locations", "office", "offices"} {
		terms = append(terms, q[k]...)
	}
	return terms
}

// Scrape renders the board list and filters rows by fuzzy location
// match against any terms present on the incoming URL.
func (p *proton) Scrape(ctx context.Context, rawURL string, opts Options) ([]model.Posting, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	listURL := fmt.Sprintf("%s://%s/proton", u.Scheme, u.Host)
	terms := protonLocationTerms(rawURL)

	htmlText, err := p.renderer.HTML(ctx, render.Request{
		URL:          listURL,
		WaitSelector: ".job-posts--table--department tr.job-post a[href]",
	})
	if err != nil {
		return nil, fmt.Errorf("proton render: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, err
	}

	return protonRows(doc, listURL, terms), nil
}

// protonRows parses rendered board rows; split out for tests.
func protonRows(doc *goquery.Document, listURL string, terms []string) []model.Posting {
	var jobs []model.Posting
	doc.Find(".job-posts--table--department tr.job-post a[href]").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		if href == "" {
			return
		}

		var title string
		if tt := a.Find(".body.body--medium").First(); tt.Length() > 0 {
			// Drop the "New" pill before reading the title text.
			clone := tt.Clone()
			clone.Find(".tag-container").Remove()
			title = collapseWhitespace(clone.Text())
		} else {
			title = collapseWhitespace(a.Text())
		}

		locText := collapseWhitespace(a.Find(".body.body__secondary.body--metadata").First().Text())
		if !anyFuzzyLocationMatch(splitLocations(locText), terms) {
			return
		}

		link := urlutil.CanonicalJobURL(urlutil.Absolute(href, listURL))
		if title == "" || link == "" {
			return
		}
		jobs = append(jobs, model.Posting{Title: title, Link: link})
	})
	return jobs
}
