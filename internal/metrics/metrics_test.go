package metrics

import (
	"strings"
	"testing"
)

func TestRecordRequestAndExport(t *testing.T) {
	reset()
	// Record a single request and ensure it appears in the export.
	RecordRequest("GET", "/v1/boards", 200, 42)

	out := Export()
	if !strings.Contains(out, "jobwatch_http_requests_total{method=\"GET\",path=\"/v1/boards\",status=\"200\"} 1") {
		t.Fatalf("expected HTTP request metric for GET /v1/boards in export, got:\n%s", out)
	}
	if !strings.Contains(out, "jobwatch_http_request_duration_ms_sum") || !strings.Contains(out, "jobwatch_http_request_duration_ms_count") {
		t.Fatalf("expected latency metrics headers in export, got:\n%s", out)
	}
}

func TestRecordScrapeMetrics(t *testing.T) {
	reset()
	RecordScrape("acme", true, 12, "", 830, 0)
	RecordScrape("acme", false, 0, "http_status", 120, 0)
	RecordScrape("globex", true, 4, "", 2100, 2)

	out := Export()
	if !strings.Contains(out, "jobwatch_scrape_attempts_total{board=\"acme\",outcome=\"ok\"} 1") {
		t.Fatalf("expected ok attempt for acme, got:\n%s", out)
	}
	if !strings.Contains(out, "jobwatch_scrape_attempts_total{board=\"acme\",outcome=\"error\"} 1") {
		t.Fatalf("expected error attempt for acme, got:\n%s", out)
	}
	if !strings.Contains(out, "jobwatch_scrape_errors_total{board=\"acme\",error_kind=\"http_status\"} 1") {
		t.Fatalf("expected classified failure for acme, got:\n%s", out)
	}
	if !strings.Contains(out, "jobwatch_scrape_jobs_seen_total{board=\"acme\"} 12") {
		t.Fatalf("expected jobs seen for acme, got:\n%s", out)
	}
	if !strings.Contains(out, "jobwatch_rendered_pages_total 2") {
		t.Fatalf("expected rendered pages counter, got:\n%s", out)
	}
	if !strings.Contains(out, "jobwatch_scrape_duration_ms_count{board=\"acme\"} 2") {
		t.Fatalf("expected duration count for acme, got:\n%s", out)
	}
}
