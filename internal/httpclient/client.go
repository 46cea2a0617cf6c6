// Package httpclient provides the process-wide HTTP client shared by
// all scrapes: pooled connections, manual content-encoding negotiation
// including Brotli, per-host request pacing, and header fallbacks for
// hosts that reject browserless-looking requests.
package httpclient

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"

	"jobwatch/internal/urlutil"
)

const defaultTimeout = 45 * time.Second

// acceptEncoding advertises brotli: decoding is handled in decodeBody,
// not by the transport.
const acceptEncoding = "gzip, deflate, br"

// StatusError is returned for non-2xx responses that survived the
// per-host retry rules.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// Options tunes a Client. Zero values take defaults.
type Options struct {
	Timeout     time.Duration
	UserAgent   string
	HostRPS     float64 // per-host request rate; 0 disables pacing
	HostBurst   int
	MaxIdle     int
	MaxIdleHost int
}

// Client is the shared connection-pooled HTTP client.
type Client struct {
	hc        *http.Client
	userAgent string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	hostRPS  float64
	burst    int
}

// New builds a Client with pooled transport and total-request timeout.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = urlutil.UserAgent
	}
	maxIdle := opts.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 40
	}
	maxIdleHost := opts.MaxIdleHost
	if maxIdleHost <= 0 {
		maxIdleHost = 10
	}
	burst := opts.HostBurst
	if burst <= 0 {
		burst = 4
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        maxIdle,
		MaxIdleConnsPerHost: maxIdleHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
		// Content negotiation is manual so brotli can be offered.
		DisableCompression: true,
	}

	return &Client{
		hc: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		userAgent: ua,
		limiters:  make(map[string]*rate.Limiter),
		hostRPS:   opts.HostRPS,
		burst:     burst,
	}
}

func (c *Client) limiter(host string) *rate.Limiter {
	if c.hostRPS <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.hostRPS), c.burst)
		c.limiters[host] = l
	}
	return l
}

func (c *Client) defaultHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", c.userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", acceptEncoding)
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

func dropBrotli(h http.Header) {
	h.Set("Accept-Encoding", "gzip, deflate")
}

// pickyHost reports whether the host is known to reject requests with
// unusual encodings or missing referers.
func pickyHost(host string) bool {
	return strings.Contains(strings.ToLower(host), "metacareers.com")
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotAcceptable, http.StatusUnavailableForLegalReasons:
		return true
	}
	return false
}

func (c *Client) do(ctx context.Context, method, rawURL string, headers http.Header, body []byte) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if l := c.limiter(u.Hostname()); l != nil {
		if err := l.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		req.Header[k] = vs
	}
	return c.hc.Do(req)
}

// decodeBody reads the full response body, reversing any declared
// content encoding.
func decodeBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case "deflate":
		fr := flate.NewReader(resp.Body)
		defer fr.Close()
		r = fr
	case "br":
		r = brotli.NewReader(resp.Body)
	}
	return io.ReadAll(r)
}

// FetchText GETs a URL and returns the decoded body as a string. For
// picky hosts the first attempt already omits brotli and carries a
// plausible Referer; on 400/403/406/451 one retry goes out with a
// reduced header set.
func (c *Client) FetchText(ctx context.Context, rawURL string, extra map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	headers := c.defaultHeaders()
	for k, v := range extra {
		headers.Set(k, v)
	}
	if pickyHost(u.Host) {
		dropBrotli(headers)
		headers.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
		if headers.Get("Referer") == "" {
			headers.Set("Referer", "https://www.metacareers.com/")
		}
	}

	resp, err := c.do(ctx, http.MethodGet, rawURL, headers, nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		b, err := decodeBody(resp)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	status := resp.StatusCode
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if !retryableStatus(status) {
		return "", &StatusError{StatusCode: status, URL: rawURL}
	}

	retry := http.Header{}
	retry.Set("User-Agent", c.userAgent)
	retry.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	retry.Set("Accept-Language", "en-US,en;q=0.9")
	retry.Set("Accept-Encoding", "gzip, deflate")
	retry.Set("Upgrade-Insecure-Requests", "1")
	retry.Set("Cache-Control", "no-cache")
	retry.Set("Pragma", "no-cache")
	retry.Set("Referer", fmt.Sprintf("%s://%s/", u.Scheme, u.Host))

	resp, err = c.do(ctx, http.MethodGet, rawURL, retry, nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return "", &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}
	b, err := decodeBody(resp)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FetchJSON GETs a URL and decodes the JSON body into v, ignoring the
// server-sent content type.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, extra map[string]string, v any) error {
	return c.fetchJSON(ctx, http.MethodGet, rawURL, extra, nil, v)
}

// PostJSON POSTs a JSON body and decodes the JSON response into v.
func (c *Client) PostJSON(ctx context.Context, rawURL string, extra map[string]string, body any, v any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
	}
	return c.fetchJSON(ctx, http.MethodPost, rawURL, extra, payload, v)
}

func (c *Client) fetchJSON(ctx context.Context, method, rawURL string, extra map[string]string, body []byte, v any) error {
	headers := c.defaultHeaders()
	headers.Set("Accept", "application/json,text/plain,*/*")
	if body != nil {
		headers.Set("Content-Type", "application/json")
	}
	for k, vv := range extra {
		headers.Set(k, vv)
	}

	resp, err := c.do(ctx, method, rawURL, headers, body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}
	b, err := decodeBody(resp)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode json from %s: %w", rawURL, err)
	}
	return nil
}
