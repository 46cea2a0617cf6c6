package model

import (
	"sort"
	"time"
)

// HealthStatus is the board-level health signal used to gate
// destructive merges.
type HealthStatus string

const (
	HealthNormal  HealthStatus = "normal"
	HealthSuspect HealthStatus = "suspect"
	HealthDown    HealthStatus = "down"
)

// HealthReason explains the current health status.
type HealthReason string

const (
	ReasonNone        HealthReason = "NONE"
	ReasonZeroSpike   HealthReason = "ZERO_SPIKE"
	ReasonEmptyStreak HealthReason = "EMPTY_STREAK"
	ReasonManual      HealthReason = "MANUAL"
)

// ScrapeHealth is the derived health state of a board. A fresh board
// starts as normal/NONE with all counters zero.
type ScrapeHealth struct {
	Status                  HealthStatus `json:"status"`
	Reason                  HealthReason `json:"reason"`
	FirstZeroAt             *time.Time   `json:"first_zero_at,omitempty"`
	ConsecutiveZeroAttempts int          `json:"consecutive_zero_attempts"`
	FlaggedUntil            *time.Time   `json:"flagged_until,omitempty"`
	LastNonzeroAt           *time.Time   `json:"last_nonzero_at,omitempty"`
	LastNonzeroCount        int          `json:"last_nonzero_count,omitempty"`
	BaselineNonzeroCount    int          `json:"baseline_nonzero_count,omitempty"`
	LastSuccessAt           *time.Time   `json:"last_success_at,omitempty"`
	LastSuccessCount        int          `json:"last_success_count,omitempty"`
}

// NewScrapeHealth returns the initial health of a fresh board.
func NewScrapeHealth() ScrapeHealth {
	return ScrapeHealth{Status: HealthNormal, Reason: ReasonNone}
}

// medianNonzeroCounts computes the median of the last k successful
// non-zero counts in the attempt window, newest last.
func medianNonzeroCounts(attempts []ScrapeAttempt, k int) int {
	var counts []int
	for i := len(attempts) - 1; i >= 0 && len(counts) < k; i-- {
		a := attempts[i]
		if a.OK && a.Count > 0 {
			counts = append(counts, a.Count)
		}
	}
	if len(counts) == 0 {
		return 0
	}
	sort.Ints(counts)
	n := len(counts)
	if n%2 == 1 {
		return counts[n/2]
	}
	return (counts[n/2-1] + counts[n/2]) / 2
}

// updateHealth advances the health state machine for one attempt.
// prev is the attempt preceding this one, if any. The current attempt
// must already be appended to b.Attempts so the baseline median sees
// it.
func (b *JobBoard) updateHealth(at time.Time, ok bool, count int, prev *ScrapeAttempt) {
	h := &b.ScrapeHealth
	pol := b.Policy

	if pol.ManualOverride {
		if h.Status != HealthDown {
			h.Status = HealthSuspect
		}
		h.Reason = ReasonManual
		return
	}

	if ok && count > 0 {
		h.ConsecutiveZeroAttempts = 0
		h.FirstZeroAt = nil
		h.FlaggedUntil = nil
		h.Status = HealthNormal
		h.Reason = ReasonNone
		ts := at.UTC()
		h.LastNonzeroAt = &ts
		h.LastNonzeroCount = count
		h.LastSuccessAt = &ts
		h.LastSuccessCount = count
		h.BaselineNonzeroCount = medianNonzeroCounts(b.Attempts, pol.attemptWindowSize())
		return
	}

	// Empty or failed attempt.
	if h.ConsecutiveZeroAttempts == 0 || h.FirstZeroAt == nil {
		ts := at.UTC()
		h.FirstZeroAt = &ts
	}
	h.ConsecutiveZeroAttempts++

	if prev != nil && prev.OK && prev.Count > 0 {
		h.Reason = ReasonZeroSpike
	} else {
		h.Reason = ReasonEmptyStreak
	}

	until := at.UTC().Add(pol.TimeFlagDuration())
	if h.FlaggedUntil == nil || until.After(*h.FlaggedUntil) {
		h.FlaggedUntil = &until
	}

	if h.LastNonzeroCount >= pol.MinBaselineToFlag {
		within := h.FirstZeroAt != nil && at.Sub(*h.FirstZeroAt) <= pol.TimeFlagDuration()
		if within && h.ConsecutiveZeroAttempts >= pol.AttemptThresholdForDown {
			h.Status = HealthDown
		} else {
			h.Status = HealthSuspect
		}
	} else {
		if h.ConsecutiveZeroAttempts >= 2 {
			h.Status = HealthSuspect
		} else {
			h.Status = HealthNormal
		}
	}
}
