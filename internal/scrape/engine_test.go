package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jobwatch/internal/ats"
	"jobwatch/internal/httpclient"
	"jobwatch/internal/model"
)

func listingPage(srv string, page, perPage int, hasNext bool) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul aria-label="Job openings">`)
	for i := 0; i < perPage; i++ {
		n := (page-1)*perPage + i
		fmt.Fprintf(&b, `<li><h3>Engineer %d</h3><a href="/positions/%06d">View</a></li>`, n, 100000+n)
	}
	b.WriteString("</ul>")
	if hasNext {
		fmt.Fprintf(&b, `<a rel="next" href="%s/careers?page=%d">Next</a>`, srv, page+1)
	} else {
		fmt.Fprintf(&b, `<span class="rc-pagination-total-pages">%d</span>`, page)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestEngine(reg *ats.Registry) *Engine {
	if reg == nil {
		reg = ats.NewRegistryWith()
	}
	return New(Config{
		HTTP:     httpclient.New(httpclient.Options{Timeout: 5 * time.Second}),
		Registry: reg,
	})
}

func TestGenericScrapeFollowsPagination(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "", "1":
			fmt.Fprint(w, listingPage(srvURL, 1, 10, true))
		case "2":
			fmt.Fprint(w, listingPage(srvURL, 2, 10, false))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	e := newTestEngine(nil)
	jobs, meta, err := e.Scrape(context.Background(), srv.URL+"/careers?page=1", Options{MaxPages: 5, SameHostOnly: true})
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if len(jobs) != 20 {
		t.Fatalf("jobs = %d, want 20", len(jobs))
	}
	if meta.AttemptedPages != 2 {
		t.Fatalf("attempted = %d, want 2", meta.AttemptedPages)
	}
	if meta.RendererUsed == nil || *meta.RendererUsed {
		t.Fatalf("renderer must not be used for server rendered pages")
	}
	if meta.Strategy != "listitem" {
		t.Fatalf("strategy = %q", meta.Strategy)
	}
}

func TestGenericScrapeDeduplicatesAcrossPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Both pages list the same jobs.
		next := ""
		if r.URL.Query().Get("page") != "2" {
			next = `<a rel="next" href="/careers?page=2">Next</a>`
		}
		fmt.Fprintf(w, `<ul aria-label="jobs">
			<li><h3>One</h3><a href="/positions/111111">v</a></li>
			<li><h3>Two</h3><a href="/positions/222222">v</a></li>
		</ul>%s`, next)
	}))
	defer srv.Close()

	e := newTestEngine(nil)
	jobs, _, err := e.Scrape(context.Background(), srv.URL+"/careers", Options{MaxPages: 5})
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2 after cross-page dedup", len(jobs))
	}
}

func TestSameHostOnlyStopsForeignPager(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<ul aria-label="jobs">
			<li><h3>One</h3><a href="/positions/111111">v</a></li>
			<li><h3>Two</h3><a href="/positions/222222">v</a></li>
		</ul><a rel="next" href="https://other.example.com/careers?page=2">Next</a>`)
	}))
	defer srv.Close()

	e := newTestEngine(nil)
	jobs, meta, err := e.Scrape(context.Background(), srv.URL+"/careers", Options{MaxPages: 5, SameHostOnly: true})
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if len(jobs) != 2 || meta.AttemptedPages != 1 {
		t.Fatalf("jobs=%d attempted=%d", len(jobs), meta.AttemptedPages)
	}
}

func TestPartialResultsSurviveMidLoopFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `<ul aria-label="jobs">
			<li><h3>One</h3><a href="/positions/111111">v</a></li>
			<li><h3>Two</h3><a href="/positions/222222">v</a></li>
		</ul><a rel="next" href="/careers?page=2">Next</a>`)
	}))
	defer srv.Close()

	e := newTestEngine(nil)
	jobs, meta, err := e.Scrape(context.Background(), srv.URL+"/careers", Options{MaxPages: 5})
	if err != nil {
		t.Fatalf("partial results must not fail the run: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d", len(jobs))
	}
	if meta.ErrorKind != "" {
		t.Fatalf("partial success must not set error kind, got %q", meta.ErrorKind)
	}
}

func TestCompleteFailureClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestEngine(nil)
	jobs, meta, err := e.Scrape(context.Background(), srv.URL+"/careers", Options{MaxPages: 2})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(jobs) != 0 {
		t.Fatalf("jobs = %v", jobs)
	}
	if meta.ErrorKind != KindHTTPStatus {
		t.Fatalf("kind = %q, want %q", meta.ErrorKind, KindHTTPStatus)
	}
}

type stubAdapter struct {
	name string
	jobs []model.Posting
	err  error
}

func (s *stubAdapter) Name() string              { return s.name }
func (s *stubAdapter) Renders() bool             { return false }
func (s *stubAdapter) Matches(rawURL string) bool { return strings.Contains(rawURL, "stub-ats") }
func (s *stubAdapter) Scrape(ctx context.Context, rawURL string, opts ats.Options) ([]model.Posting, error) {
	return s.jobs, s.err
}

func TestATSFastPathSkipsGenericFlow(t *testing.T) {
	adapter := &stubAdapter{name: "stub", jobs: []model.Posting{
		{Title: "Engineer", Link: "https://stub-ats.example.com/positions/123456"},
	}}
	e := newTestEngine(ats.NewRegistryWith(adapter))

	jobs, meta, err := e.Scrape(context.Background(), "https://stub-ats.example.com/acme", Options{})
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if meta.ATSAdapter != "stub" {
		t.Fatalf("adapter = %q", meta.ATSAdapter)
	}
	if meta.AttemptedPages != 0 {
		t.Fatalf("generic flow must be skipped, attempted = %d", meta.AttemptedPages)
	}
	if len(jobs) != 1 {
		t.Fatalf("jobs = %v", jobs)
	}
}

func TestATSFailureIsATSError(t *testing.T) {
	adapter := &stubAdapter{name: "stub", err: errors.New("shape mismatch")}
	e := newTestEngine(ats.NewRegistryWith(adapter))

	_, meta, err := e.Scrape(context.Background(), "https://stub-ats.example.com/acme", Options{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if meta.ErrorKind != KindATSError {
		t.Fatalf("kind = %q", meta.ErrorKind)
	}
}
