package ats

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"jobwatch/internal/model"
	"jobwatch/internal/render"
	"jobwatch/internal/urlutil"
)

var ashbyHostRe = regexp.MustCompile(`(?i)(?:^|\.)jobs\.ashbyhq\.com$`)

type ashby struct {
	renderer *render.Renderer
}

func newAshby(deps Deps) *ashby {
	return &ashby{renderer: deps.Renderer}
}

func (a *ashby) Name() string  { return "ashbyhq" }
func (a *ashby) Renders() bool { return true }

func (a *ashby) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && ashbyHostRe.MatchString(u.Hostname())
}

// ashbyJobUUID returns the posting uuid if the path has the
// /<org>/<uuid> shape tiles link to.
func ashbyJobUUID(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(segs); i++ {
		if len(segs[i]) == 36 {
			if _, err := uuid.Parse(segs[i]); err == nil {
				return segs[i]
			}
		}
	}
	return ""
}

func ashbyJobURL(href, baseURL string) (string, string) {
	abs := urlutil.Absolute(href, baseURL)
	u, err := url.Parse(abs)
	if err != nil {
		return "", ""
	}
	if !ashbyHostRe.MatchString(u.Hostname()) {
		return "", ""
	}
	id := ashbyJobUUID(u.Path)
	if id == "" {
		return "", ""
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), id
}

// Scrape renders the hydrated board, collects /<org>/<uuid> tiles,
// and follows each for its h1. Tile classes are hashed, so href
// shape is the only stable hook.
func (a *ashby) Scrape(ctx context.Context, rawURL string, opts Options) ([]model.Posting, error) {
	org := companyFromPath(rawURL)
	waitSel := `a[href*="-"]`
	if org != "" {
		waitSel = fmt.Sprintf(`a[href^="/%s/"][href*="-"]`, org)
	}

	listingHTML, err := a.renderer.HTML(ctx, render.Request{URL: rawURL, WaitSelector: waitSel})
	if err != nil {
		return nil, fmt.Errorf("ashby render: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingHTML))
	if err != nil {
		return nil, err
	}

	seenIDs := map[string]struct{}{}
	type tile struct {
		link string
		id   string
	}
	var tiles []tile
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		link, id := ashbyJobURL(sel.AttrOr("href", ""), rawURL)
		if link == "" {
			return
		}
		if _, dup := seenIDs[id]; dup {
			return
		}
		seenIDs[id] = struct{}{}
		tiles = append(tiles, tile{link: urlutil.CanonicalJobURL(link), id: id})
	})

	var jobs []model.Posting
	for _, t := range tiles {
		detailHTML, err := a.renderer.HTML(ctx, render.Request{URL: t.link, WaitSelector: "h1"})
		if err != nil {
			continue
		}
		title := firstH1(detailHTML)
		if title == "" {
			continue
		}
		jobs = append(jobs, model.Posting{Title: title, Link: t.link})
	}
	return jobs, nil
}
