package scrape

import (
	"context"
	"errors"

	"jobwatch/internal/httpclient"
	"jobwatch/internal/render"
)

// Stable error kinds recorded on scrape attempts. The health machine
// and scheduler backoff consume this one uniform signal.
const (
	KindNetwork       = "network"
	KindHTTPStatus    = "http_status"
	KindRenderTimeout = "render_timeout"
	KindRenderError   = "render_error"
	KindParseError    = "parse_error"
	KindATSError      = "ats_error"
	KindValidation    = "validation"
)

var errRendererDisabled = errors.New("page needs rendering but no renderer is configured")

// classifyFetchErr maps HTTP client failures onto the taxonomy.
func classifyFetchErr(err error) string {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return KindHTTPStatus
	}
	return KindNetwork
}

func classifyRenderErr(err error) string {
	if render.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return KindRenderTimeout
	}
	return KindRenderError
}
