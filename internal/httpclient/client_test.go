package httpclient

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
)

func TestFetchTextPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Errorf("missing User-Agent header")
		}
		if enc := r.Header.Get("Accept-Encoding"); enc != acceptEncoding {
			t.Errorf("Accept-Encoding = %q, want %q", enc, acceptEncoding)
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := New(Options{})
	got, err := c.FetchText(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("FetchText failed: %v", err)
	}
	if got != "<html>ok</html>" {
		t.Fatalf("body = %q", got)
	}
}

func TestFetchTextDecodesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("compressed body"))
		gz.Close()
	}))
	defer srv.Close()

	c := New(Options{})
	got, err := c.FetchText(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("FetchText failed: %v", err)
	}
	if got != "compressed body" {
		t.Fatalf("body = %q", got)
	}
}

func TestFetchTextDecodesBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		bw.Write([]byte("brotli body"))
		bw.Close()
	}))
	defer srv.Close()

	c := New(Options{})
	got, err := c.FetchText(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("FetchText failed: %v", err)
	}
	if got != "brotli body" {
		t.Fatalf("body = %q", got)
	}
}

func TestFetchTextRetriesOn403WithReducedHeaders(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.Header.Get("Referer") == "" {
			t.Errorf("retry request missing Referer")
		}
		if r.Header.Get("Accept-Encoding") != "gzip, deflate" {
			t.Errorf("retry must not offer brotli, got %q", r.Header.Get("Accept-Encoding"))
		}
		w.Write([]byte("second try"))
	}))
	defer srv.Close()

	c := New(Options{})
	got, err := c.FetchText(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("FetchText failed: %v", err)
	}
	if got != "second try" || calls != 2 {
		t.Fatalf("body = %q calls = %d", got, calls)
	}
}

func TestFetchTextSurfacesOtherStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Options{})
	_, err := c.FetchText(context.Background(), srv.URL, nil)
	se, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", se.StatusCode)
	}
}

func TestFetchJSONIgnoresContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(`{"total": 3}`))
	}))
	defer srv.Close()

	c := New(Options{})
	var out struct {
		Total int `json:"total"`
	}
	if err := c.FetchJSON(context.Background(), srv.URL, nil, &out); err != nil {
		t.Fatalf("FetchJSON failed: %v", err)
	}
	if out.Total != 3 {
		t.Fatalf("total = %d", out.Total)
	}
}

func TestPostJSONSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := New(Options{})
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.PostJSON(context.Background(), srv.URL, nil, map[string]any{"limit": 20}, &out)
	if err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	if !out.OK {
		t.Fatalf("expected ok response")
	}
}
