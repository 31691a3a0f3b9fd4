package domain

import "time"

// MarketSet is the snapshot set committed by one poll cycle.
type MarketSet struct {
	Markets []Market  `json:"markets"`
	At      time.Time `json:"at"`
	// Partial is set when the cycle hit its deadline or an upstream failed.
	Partial bool `json:"partial"`
	// Skipped counts markets left out of the cycle.
	Skipped int `json:"skipped"`
}

// Stale reports whether any market in the set is a last-known copy.
func (s MarketSet) Stale() bool {
	for _, m := range s.Markets {
		if m.Stale {
			return true
		}
	}
	return false
}

// Published is an immutable committed result of a subsystem. Readers get it
// through an atomic pointer and must not modify it.
type Published[T any] struct {
	Value T         `json:"value"`
	At    time.Time `json:"at"`
	Stale bool      `json:"stale"`
}
