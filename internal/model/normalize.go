package model

import (
	"sort"
	"time"
)

// NormalizeHistory restores the history invariants after a mutation:
// events sorted ascending by time, no two consecutive events with the
// same status, and no inactive event followed by a returning active
// within flapWindow (the pair is removed, treating the gap as never
// having happened). The transform is idempotent and order-stable.
func NormalizeHistory(history []Status, flapWindow time.Duration) []Status {
	if len(history) == 0 {
		return history
	}
	if flapWindow <= 0 {
		flapWindow = 6 * time.Hour
	}

	sorted := make([]Status, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].At.Before(sorted[j].At)
	})

	kept := sorted[:0]
	for _, ev := range sorted {
		if len(kept) > 0 {
			last := kept[len(kept)-1]
			if last.Status == ev.Status {
				continue
			}
			// Flap: a return to active shortly after an inactive
			// cancels both events.
			if ev.Status == StatusActive && last.Status == StatusInactive &&
				ev.At.Sub(last.At) <= flapWindow {
				kept = kept[:len(kept)-1]
				continue
			}
		}
		kept = append(kept, ev)
	}
	return kept
}
