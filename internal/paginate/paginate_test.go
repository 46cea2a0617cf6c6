package paginate

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestRelNextWins(t *testing.T) {
	doc := parse(t, `<a rel="next" href="/search?page=3">Next</a>`)
	got := NextPageURL(doc, "https://ex.com/search?page=2")
	if got != "https://ex.com/search?page=3" {
		t.Fatalf("got %q", got)
	}
}

func TestAriaLabelNext(t *testing.T) {
	doc := parse(t, `<a aria-label="Go to next page" href="/jobs?start=20">→</a>`)
	got := NextPageURL(doc, "https://ex.com/jobs")
	if got != "https://ex.com/jobs?start=20" {
		t.Fatalf("got %q", got)
	}
}

func TestDisabledNextIgnored(t *testing.T) {
	doc := parse(t, `<a aria-label="next" aria-disabled="true" href="/jobs?page=9">next</a>`)
	got := NextPageURL(doc, "https://ex.com/jobs")
	if got != "" {
		t.Fatalf("disabled link must not be followed, got %q", got)
	}
}

func TestDisabledClassIgnored(t *testing.T) {
	doc := parse(t, `<a aria-label="next" class="pager disabled" href="/jobs?page=9">next</a>`)
	if got := NextPageURL(doc, "https://ex.com/jobs"); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestPageParamIncrement(t *testing.T) {
	doc := parse(t, `<div>no pager markup</div>`)
	got := NextPageURL(doc, "https://ex.com/careers?page=3&q=go")
	if !strings.Contains(got, "page=4") || !strings.Contains(got, "q=go") {
		t.Fatalf("got %q", got)
	}
}

func TestAltPageKeyIncrement(t *testing.T) {
	doc := parse(t, `<div></div>`)
	got := NextPageURL(doc, "https://ex.com/careers?pg=1")
	if !strings.Contains(got, "pg=2") {
		t.Fatalf("got %q", got)
	}
}

func TestTotalPagesStopsIncrement(t *testing.T) {
	doc := parse(t, `<span class="rc-pagination-total-pages">3</span>`)
	if got := NextPageURL(doc, "https://ex.com/careers?page=3"); got != "" {
		t.Fatalf("page 3 of 3 must stop, got %q", got)
	}
	got := NextPageURL(doc, "https://ex.com/careers?page=2")
	if !strings.Contains(got, "page=3") {
		t.Fatalf("page 2 of 3 must continue, got %q", got)
	}
}

func TestOffsetStepFromResultsWindow(t *testing.T) {
	doc := parse(t, `<p>Showing 1-20 of 57 jobs</p>`)
	got := NextPageURL(doc, "https://ex.com/search?startrow=0")
	if !strings.Contains(got, "startrow=20") {
		t.Fatalf("got %q", got)
	}
}

func TestOffsetStopsAtTotal(t *testing.T) {
	doc := parse(t, `<p>Showing 41-57 of 57 jobs</p>`)
	if got := NextPageURL(doc, "https://ex.com/search?startrow=40"); got != "" {
		t.Fatalf("exhausted window must stop, got %q", got)
	}
}

func TestLowestPagerAnchorBeyondCurrent(t *testing.T) {
	html := `<input data-autom="paginationPageInput" value="2">
	<nav aria-label="pagination">
	  <a aria-label="Page 1" href="/jobs?page=1">1</a>
	  <a aria-label="Page 4" href="/jobs?page=4">4</a>
	  <a aria-label="Page 3" href="/jobs?page=3">3</a>
	</nav>`
	doc := parse(t, html)
	got := NextPageURL(doc, "https://ex.com/jobs?page=2")
	if got != "https://ex.com/jobs?page=3" {
		t.Fatalf("want lowest page beyond current, got %q", got)
	}
}

func TestNoSignalReturnsEmpty(t *testing.T) {
	doc := parse(t, `<p>just content</p>`)
	if got := NextPageURL(doc, "https://ex.com/careers"); got != "" {
		t.Fatalf("got %q", got)
	}
}
