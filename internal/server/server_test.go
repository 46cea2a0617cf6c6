package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jobwatch/internal/config"
	"jobwatch/internal/model"
	"jobwatch/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st := store.New(store.Options{Dir: t.TempDir()})
	return NewServer(config.Default(), st, nil, nil), st
}

func seedBoard(t *testing.T, st *store.Store, title string) *model.JobBoard {
	t.Helper()
	b := model.NewJobBoard(title, "", "https://"+model.Slugify(title)+".example.com/careers")
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	b.Reconcile([]model.Posting{
		{Title: "Engineer", Link: "https://acme.example.com/positions/1"},
		{Title: "Designer", Link: "https://acme.example.com/positions/2"},
	}, at, true, 900, nil, "")
	next := at.Add(time.Hour)
	b.NextScrapeAt = &next
	if err := st.Save(b); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return b
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/healthz?deep=true", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["pages_dir"] != "ok" || body["renderer"] != "disabled" {
		t.Fatalf("deep health = %v", body)
	}
}

func TestListBoards(t *testing.T) {
	s, st := newTestServer(t)
	seedBoard(t, st, "Acme GmbH")

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/v1/boards", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Boards []boardSummary `json:"boards"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Boards) != 1 {
		t.Fatalf("boards = %+v", body.Boards)
	}
	got := body.Boards[0]
	if got.Slug != "acme-gmbh" || got.ActiveJobs != 2 || got.TotalJobs != 2 || got.Health != model.HealthNormal {
		t.Fatalf("summary = %+v", got)
	}
	if got.NextScrapeAt == nil {
		t.Fatalf("next_scrape_at missing")
	}
}

func TestGetBoard(t *testing.T) {
	s, st := newTestServer(t)
	seedBoard(t, st, "Acme")

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/v1/boards/acme", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var b model.JobBoard
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Title != "Acme" || len(b.Content) != 2 {
		t.Fatalf("board = %+v", b)
	}

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/v1/boards/missing", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetBoardRejectsUnsafeSlug(t *testing.T) {
	s, _ := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/v1/boards/..%2Fetc", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateBoard(t *testing.T) {
	s, st := newTestServer(t)

	body := strings.NewReader(`{"title":"Globex","website_url":"https://globex.example.com/jobs"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/boards", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	b, err := st.LoadByTitle("Globex")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if b.WebsiteURL != "https://globex.example.com/jobs" {
		t.Fatalf("board = %+v", b)
	}

	// Duplicate title conflicts.
	req = httptest.NewRequest(http.MethodPost, "/v1/boards", strings.NewReader(`{"title":"Globex","website_url":"https://globex.example.com/jobs"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestCreateBoardRequiresFields(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/boards", strings.NewReader(`{"title":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRescrapeClearsMarkers(t *testing.T) {
	s, st := newTestServer(t)
	seedBoard(t, st, "Acme")

	req := httptest.NewRequest(http.MethodPost, "/v1/boards/acme/rescrape", nil)
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	verify := store.New(store.Options{Dir: st.Dir()})
	got, err := verify.LoadByTitle("Acme")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.LastScraped != nil || got.NextScrapeAt != nil {
		t.Fatalf("markers not cleared: last=%v next=%v", got.LastScraped, got.NextScrapeAt)
	}
	if len(got.Content) != 2 {
		t.Fatalf("content must survive a re-scrape request: %+v", got.Content)
	}

	resp, err = s.App().Test(httptest.NewRequest(http.MethodPost, "/v1/boards/missing/rescrape", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
