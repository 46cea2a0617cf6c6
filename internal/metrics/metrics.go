package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for HTTP requests and scrape runs.
// This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	scrapeAttempts   = make(map[scrapeKey]int64)
	scrapeErrors     = make(map[errKey]int64)
	scrapeJobsSeen   = make(map[string]int64)
	renderedPages    int64
	scrapeDurationMs = make(map[string]int64)
	scrapeRuns       = make(map[string]int64)
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type scrapeKey struct {
	Board   string
	Outcome string
}

type errKey struct {
	Board string
	Kind  string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordScrape records one finished scrape attempt for a board.
func RecordScrape(board string, ok bool, count int, errorKind string, durationMs int64, renderedPageCount int) {
	mu.Lock()
	defer mu.Unlock()

	outcome := "error"
	if ok {
		outcome = "ok"
	}
	scrapeAttempts[scrapeKey{Board: board, Outcome: outcome}]++
	if !ok && errorKind != "" {
		scrapeErrors[errKey{Board: board, Kind: errorKind}]++
	}
	if count > 0 {
		scrapeJobsSeen[board] += int64(count)
	}
	renderedPages += int64(renderedPageCount)
	scrapeDurationMs[board] += durationMs
	scrapeRuns[board]++
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP jobwatch_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE jobwatch_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		v := requestsTotal[k]
		fmt.Fprintf(&b, "jobwatch_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, v)
	}

	b.WriteString("# HELP jobwatch_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE jobwatch_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP jobwatch_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE jobwatch_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		fmt.Fprintf(&b, "jobwatch_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "jobwatch_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	// Scrape metrics
	b.WriteString("# HELP jobwatch_scrape_attempts_total Total scrape attempts by board and outcome\n")
	b.WriteString("# TYPE jobwatch_scrape_attempts_total counter\n")

	var scrapeKeys []scrapeKey
	for k := range scrapeAttempts {
		scrapeKeys = append(scrapeKeys, k)
	}
	sort.Slice(scrapeKeys, func(i, j int) bool {
		if scrapeKeys[i].Board != scrapeKeys[j].Board {
			return scrapeKeys[i].Board < scrapeKeys[j].Board
		}
		return scrapeKeys[i].Outcome < scrapeKeys[j].Outcome
	})
	for _, k := range scrapeKeys {
		fmt.Fprintf(&b, "jobwatch_scrape_attempts_total{board=\"%s\",outcome=\"%s\"} %d\n",
			k.Board, k.Outcome, scrapeAttempts[k])
	}

	b.WriteString("# HELP jobwatch_scrape_errors_total Total scrape failures by board and error kind\n")
	b.WriteString("# TYPE jobwatch_scrape_errors_total counter\n")

	var errKeys []errKey
	for k := range scrapeErrors {
		errKeys = append(errKeys, k)
	}
	sort.Slice(errKeys, func(i, j int) bool {
		if errKeys[i].Board != errKeys[j].Board {
			return errKeys[i].Board < errKeys[j].Board
		}
		return errKeys[i].Kind < errKeys[j].Kind
	})
	for _, k := range errKeys {
		fmt.Fprintf(&b, "jobwatch_scrape_errors_total{board=\"%s\",error_kind=\"%s\"} %d\n",
			k.Board, k.Kind, scrapeErrors[k])
	}

	b.WriteString("# HELP jobwatch_scrape_jobs_seen_total Total postings returned by successful scrapes\n")
	b.WriteString("# TYPE jobwatch_scrape_jobs_seen_total counter\n")

	var boards []string
	for board := range scrapeJobsSeen {
		boards = append(boards, board)
	}
	sort.Strings(boards)
	for _, board := range boards {
		fmt.Fprintf(&b, "jobwatch_scrape_jobs_seen_total{board=\"%s\"} %d\n", board, scrapeJobsSeen[board])
	}

	b.WriteString("# HELP jobwatch_scrape_duration_ms_sum Total scrape duration in milliseconds\n")
	b.WriteString("# TYPE jobwatch_scrape_duration_ms_sum counter\n")
	b.WriteString("# HELP jobwatch_scrape_duration_ms_count Scrape count for duration metric\n")
	b.WriteString("# TYPE jobwatch_scrape_duration_ms_count counter\n")

	var durBoards []string
	for board := range scrapeRuns {
		durBoards = append(durBoards, board)
	}
	sort.Strings(durBoards)
	for _, board := range durBoards {
		fmt.Fprintf(&b, "jobwatch_scrape_duration_ms_sum{board=\"%s\"} %d\n", board, scrapeDurationMs[board])
		fmt.Fprintf(&b, "jobwatch_scrape_duration_ms_count{board=\"%s\"} %d\n", board, scrapeRuns[board])
	}

	b.WriteString("# HELP jobwatch_rendered_pages_total Total pages produced by the headless renderer\n")
	b.WriteString("# TYPE jobwatch_rendered_pages_total counter\n")
	fmt.Fprintf(&b, "jobwatch_rendered_pages_total %d\n", renderedPages)

	return b.String()
}

// reset clears all counters; used by tests.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	requestsTotal = make(map[reqKey]int64)
	latencyMsSum = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)
	scrapeAttempts = make(map[scrapeKey]int64)
	scrapeErrors = make(map[errKey]int64)
	scrapeJobsSeen = make(map[string]int64)
	scrapeDurationMs = make(map[string]int64)
	scrapeRuns = make(map[string]int64)
	renderedPages = 0
}
