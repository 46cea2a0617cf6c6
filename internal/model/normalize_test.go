package model

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2025, 1, 1, h, m, 0, 0, time.UTC)
}

func TestNormalizeHistorySortsAndDedupes(t *testing.T) {
	h := []Status{
		{Status: StatusActive, At: at(12, 0)},
		{Status: StatusActive, At: at(9, 0)},
		{Status: StatusInactive, At: at(20, 0)},
	}
	got := NormalizeHistory(h, 6*time.Hour)
	if len(got) != 2 {
		t.Fatalf("expected 2 events after dedupe, got %d: %v", len(got), got)
	}
	if got[0].Status != StatusActive || !got[0].At.Equal(at(9, 0)) {
		t.Fatalf("unexpected first event: %v", got[0])
	}
	if got[1].Status != StatusInactive || !got[1].At.Equal(at(20, 0)) {
		t.Fatalf("unexpected second event: %v", got[1])
	}
}

func TestNormalizeHistoryFlapSuppression(t *testing.T) {
	h := []Status{
		{Status: StatusActive, At: at(9, 0)},
		{Status: StatusInactive, At: at(10, 0)},
		{Status: StatusActive, At: at(14, 59)},
	}
	got := NormalizeHistory(h, 6*time.Hour)
	if len(got) != 1 || got[0].Status != StatusActive || !got[0].At.Equal(at(9, 0)) {
		t.Fatalf("expected flap to collapse to [active 09:00], got %v", got)
	}
}

func TestNormalizeHistoryKeepsGenuineGap(t *testing.T) {
	h := []Status{
		{Status: StatusActive, At: at(1, 0)},
		{Status: StatusInactive, At: at(2, 0)},
		{Status: StatusActive, At: at(9, 0)}, // 7h after inactive
	}
	got := NormalizeHistory(h, 6*time.Hour)
	if len(got) != 3 {
		t.Fatalf("expected gap > window to survive, got %v", got)
	}
}

func TestNormalizeHistoryIdempotent(t *testing.T) {
	inputs := [][]Status{
		{
			{Status: StatusActive, At: at(9, 0)},
			{Status: StatusInactive, At: at(10, 0)},
			{Status: StatusActive, At: at(11, 0)},
			{Status: StatusInactive, At: at(18, 0)},
		},
		{
			{Status: StatusInactive, At: at(1, 0)},
			{Status: StatusActive, At: at(2, 0)},
		},
		nil,
	}
	for _, h := range inputs {
		once := NormalizeHistory(h, 6*time.Hour)
		twice := NormalizeHistory(append([]Status(nil), once...), 6*time.Hour)
		if len(once) != len(twice) {
			t.Fatalf("not idempotent: %v vs %v", once, twice)
		}
		for i := range once {
			if once[i] != twice[i] {
				t.Fatalf("not idempotent at %d: %v vs %v", i, once, twice)
			}
		}
	}
}

func TestNormalizeHistoryNoAdjacentDuplicatesInvariant(t *testing.T) {
	h := []Status{
		{Status: StatusActive, At: at(1, 0)},
		{Status: StatusActive, At: at(2, 0)},
		{Status: StatusInactive, At: at(10, 0)},
		{Status: StatusInactive, At: at(11, 0)},
		{Status: StatusActive, At: at(20, 0)},
	}
	got := NormalizeHistory(h, 6*time.Hour)
	for i := 1; i < len(got); i++ {
		if got[i].Status == got[i-1].Status {
			t.Fatalf("adjacent duplicate at %d: %v", i, got)
		}
	}
}

func TestActiveHoursAndIsActive(t *testing.T) {
	j := &Job{Title: "Engineer", Link: "https://x.com/job/1"}
	if j.IsActive() {
		t.Fatalf("empty history should not be active")
	}
	if j.ActiveHours(at(12, 0)) != 0 {
		t.Fatalf("inactive job must have 0 active hours")
	}

	j.History = []Status{
		{Status: StatusActive, At: at(1, 0)},
		{Status: StatusInactive, At: at(2, 0)},
		{Status: StatusActive, At: at(9, 0)},
	}
	if !j.IsActive() {
		t.Fatalf("expected active")
	}
	got := j.ActiveHours(at(12, 0))
	if got != 3 {
		t.Fatalf("ActiveHours = %v, want 3 (streak starts at 09:00)", got)
	}
}
