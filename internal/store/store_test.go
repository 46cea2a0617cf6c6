package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"jobwatch/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(Options{Dir: t.TempDir()})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	b := model.NewJobBoard("Acme GmbH", "https://acme.example.com/icon.png", "https://acme.example.com/careers")
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	b.Reconcile([]model.Posting{
		{Title: "Engineer", Link: "https://acme.example.com/positions/123456"},
	}, at, true, 1200, nil, "")

	if err := s.Save(b); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadByTitle("Acme GmbH")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, b) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, b)
	}
}

func TestPathDerivedFromSlug(t *testing.T) {
	s := New(Options{Dir: "/tmp/pages"})
	if got := s.Path("Café Müller & Sons"); filepath.Base(got) != "cafe-muller-sons.json" {
		t.Fatalf("path = %q", got)
	}
}

func TestSaveIsIndentedAndLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	b := model.NewJobBoard("Acme", "", "https://acme.example.com")
	if err := s.Save(b); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(s.Path("Acme"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"title\"") {
		t.Fatalf("document is not 2-space indented:\n%s", data)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestListBoardsSkipsInvalidDocuments(t *testing.T) {
	s := newTestStore(t)
	for _, title := range []string{"Beta", "Alpha"} {
		if err := s.Save(model.NewJobBoard(title, "", "https://"+title+".example.com")); err != nil {
			t.Fatalf("save %s: %v", title, err)
		}
	}

	// One corrupt file and one valid JSON missing required fields.
	if err := os.WriteFile(filepath.Join(s.Dir(), "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty, _ := json.Marshal(map[string]string{"title": ""})
	if err := os.WriteFile(filepath.Join(s.Dir(), "empty.json"), empty, 0o644); err != nil {
		t.Fatal(err)
	}

	boards, err := s.ListBoards()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(boards) != 2 {
		t.Fatalf("boards = %d, want 2", len(boards))
	}
	if boards[0].Title != "Alpha" || boards[1].Title != "Beta" {
		t.Fatalf("order = %q, %q", boards[0].Title, boards[1].Title)
	}
}

func TestListBoardsMissingDirIsEmpty(t *testing.T) {
	s := New(Options{Dir: filepath.Join(t.TempDir(), "nope")})
	boards, err := s.ListBoards()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(boards) != 0 {
		t.Fatalf("boards = %d", len(boards))
	}
}

func TestLoadServesFromCacheWithinTTL(t *testing.T) {
	s := newTestStore(t)
	b := model.NewJobBoard("Acme", "", "https://acme.example.com")
	if err := s.Save(b); err != nil {
		t.Fatalf("save: %v", err)
	}
	path := s.Path("Acme")
	if _, err := s.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Corrupt the file on disk; the cached copy must still be served.
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(path)
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if got.Title != "Acme" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	s := newTestStore(t)
	b := model.NewJobBoard("Acme", "", "https://acme.example.com")
	if err := s.Save(b); err != nil {
		t.Fatalf("save: %v", err)
	}
	path := s.Path("Acme")
	if _, err := s.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	now := time.Now()
	s.now = func() time.Time { return now.Add(defaultCacheTTL + time.Second) }

	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(path); err == nil {
		t.Fatalf("expired cache must re-read from disk")
	}
}

func TestSaveInvalidatesCache(t *testing.T) {
	s := newTestStore(t)
	b := model.NewJobBoard("Acme", "", "https://acme.example.com")
	if err := s.Save(b); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Load(s.Path("Acme")); err != nil {
		t.Fatalf("load: %v", err)
	}

	b.IconURL = "https://acme.example.com/icon.png"
	if err := s.Save(b); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := s.Load(s.Path("Acme"))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.IconURL != b.IconURL {
		t.Fatalf("stale cache survived write: %q", got.IconURL)
	}
}

func TestSaveRejectsInvalidBoard(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(&model.JobBoard{Title: "  "}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	s := newTestStore(t)
	b := model.NewJobBoard("Acme", "", "https://acme.example.com")
	if err := s.Save(b); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Delete("Acme"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(s.Path("Acme")); !os.IsNotExist(err) {
		t.Fatalf("document still present")
	}
	// Deleting again is a no-op.
	if err := s.Delete("Acme"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestLoadReturnsIndependentCopies(t *testing.T) {
	s := newTestStore(t)
	b := model.NewJobBoard("Acme", "", "https://acme.example.com")
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	b.Reconcile([]model.Posting{
		{Title: "Engineer", Link: "https://acme.example.com/positions/123456"},
	}, at, true, 1200, nil, "")
	if err := s.Save(b); err != nil {
		t.Fatalf("save: %v", err)
	}
	path := s.Path("Acme")

	first, err := s.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	second, err := s.Load(path)
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if first == second {
		t.Fatalf("cache handed out a shared pointer")
	}

	// One goroutine reconciles its copy while another keeps loading
	// and serialising; the race detector must stay quiet.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			first.Reconcile(nil, at.Add(time.Duration(i+1)*time.Hour), true, 5, nil, "")
		}
	}()
	for i := 0; i < 50; i++ {
		got, err := s.Load(path)
		if err != nil {
			t.Fatalf("concurrent load: %v", err)
		}
		if _, err := json.Marshal(got); err != nil {
			t.Fatalf("concurrent marshal: %v", err)
		}
	}
	<-done

	// None of the reconciles on the loaded copy may reach the cache.
	got, err := s.Load(path)
	if err != nil {
		t.Fatalf("final load: %v", err)
	}
	if len(got.Attempts) != 1 {
		t.Fatalf("mutation leaked into the cache: %d attempts", len(got.Attempts))
	}
}
