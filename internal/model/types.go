// Package model holds the board/job data model: append-only per-job
// status history, the scrape-attempt window, the board health state
// machine, and the health-aware merge that reconciles a scrape result
// into a board.
package model

import (
	"time"
)

// StatusKind is the observed state of a single posting.
type StatusKind string

const (
	StatusActive   StatusKind = "active"
	StatusInactive StatusKind = "inactive"
)

// Status is a single observation of a posting's state.
type Status struct {
	Status StatusKind `json:"status"`
	At     time.Time  `json:"at"`
}

// Posting is a scraped (title, canonical link) pair before it is
// merged into a board.
type Posting struct {
	Title string
	Link  string
}

// Job is a posting tracked within a board, uniquely identified by its
// canonical link. History is kept sorted ascending and normalised.
type Job struct {
	Title   string   `json:"title"`
	Link    string   `json:"link"`
	History []Status `json:"history"`
}

// IsActive reports whether the job's latest observation is active.
func (j *Job) IsActive() bool {
	return len(j.History) > 0 && j.History[len(j.History)-1].Status == StatusActive
}

// ActiveHours returns the length in hours of the trailing unbroken
// active run, measured from its first active event until now. Zero if
// the job is not currently active.
func (j *Job) ActiveHours(now time.Time) float64 {
	if !j.IsActive() {
		return 0
	}
	var start time.Time
	for i := len(j.History) - 1; i >= 0; i-- {
		if j.History[i].Status == StatusInactive {
			break
		}
		start = j.History[i].At
	}
	if start.IsZero() {
		return 0
	}
	h := now.Sub(start).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// Mark appends an observation and restores the history invariants.
func (j *Job) Mark(kind StatusKind, at time.Time, flapWindow time.Duration) {
	j.History = append(j.History, Status{Status: kind, At: at.UTC()})
	j.History = NormalizeHistory(j.History, flapWindow)
}

// ScrapeAttempt records the outcome of one scrape of a board.
// RendererUsed is nil when unknown (an ATS adapter handled the scrape
// without reporting).
type ScrapeAttempt struct {
	At           time.Time `json:"at"`
	OK           bool      `json:"ok"`
	Count        int       `json:"count"`
	DurationMs   int64     `json:"duration_ms,omitempty"`
	RendererUsed *bool     `json:"renderer_used,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
}

// AttemptWindowMax bounds the sliding window of retained attempts.
const AttemptWindowMax = 50

// ScrapePolicy is per-board tuning for the health state machine and
// the deactivation gate. Durations are stored as whole seconds.
type ScrapePolicy struct {
	TimeFlagDurationS                     int64 `json:"time_flag_duration_s"`
	AttemptThresholdForDown               int   `json:"attempt_threshold_for_down"`
	AttemptWindowSize                     int   `json:"attempt_window_size"`
	MinBaselineToFlag                     int   `json:"min_baseline_to_flag"`
	RequireTwoSuccessfulZerosToDeactivate bool  `json:"require_two_successful_zeros_to_deactivate"`
	ManualOverride                        bool  `json:"manual_override"`
	FlapWindowS                           int64 `json:"flap_window_s"`
}

// DefaultScrapePolicy returns the documented defaults: 24h flag
// duration, 5 attempts to reach down, window of 10, baseline of 3,
// two successful zeros required, 6h flap window.
func DefaultScrapePolicy() ScrapePolicy {
	return ScrapePolicy{
		TimeFlagDurationS:                     int64(24 * time.Hour / time.Second),
		AttemptThresholdForDown:               5,
		AttemptWindowSize:                     10,
		MinBaselineToFlag:                     3,
		RequireTwoSuccessfulZerosToDeactivate: true,
		ManualOverride:                        false,
		FlapWindowS:                           int64(6 * time.Hour / time.Second),
	}
}

// TimeFlagDuration returns the flag duration, defaulting to 24h when
// the stored value is unset.
func (p ScrapePolicy) TimeFlagDuration() time.Duration {
	if p.TimeFlagDurationS <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(p.TimeFlagDurationS) * time.Second
}

// FlapWindow returns the flap-suppression window, defaulting to 6h.
func (p ScrapePolicy) FlapWindow() time.Duration {
	if p.FlapWindowS <= 0 {
		return 6 * time.Hour
	}
	return time.Duration(p.FlapWindowS) * time.Second
}

func (p ScrapePolicy) attemptWindowSize() int {
	if p.AttemptWindowSize <= 0 {
		return 10
	}
	return p.AttemptWindowSize
}
