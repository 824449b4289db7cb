// Package window computes how long past its deadline an assignment is still
// worth a retrieval attempt. A late penalty of r per day means the score
// decays to nothing after ceil(1/r) days, so retrieval stays meaningful for
// ceil(1/r)-1 days past the deadline.
package window

import (
	"math"
	"time"
)

// LastRetrievalDate returns the last calendar date on which fetching the
// assignment still makes sense, or nil when the window is unbounded.
//
// A nil deadline defers to the course's own closing date. A nil, zero or
// negative penalty rate gives a single-day window ending on the deadline
// itself; zero and negative rates are malformed, which the second return
// flags so the caller can log it, but they are never fatal.
func LastRetrievalDate(deadline *time.Time, latePenalty *float64, courseCloses *time.Time) (*time.Time, bool) {
	if deadline == nil {
		return courseCloses, false
	}

	if latePenalty == nil {
		return deadline, false
	}
	rate := *latePenalty
	if rate <= 0 {
		return deadline, true
	}

	softDays := int(math.Ceil(1/rate)) - 1
	last := deadline.AddDate(0, 0, softDays)
	return &last, false
}

// OpenForRetrieval reports whether a retrieval run at now is still in time
// for a window closing on last. Fetches happen just after midnight for the
// day that ended, so the day immediately after the window is still valid
// ("yesterday, but still in time"). nil means unbounded and always open.
func OpenForRetrieval(now time.Time, last *time.Time) bool {
	if last == nil {
		return true
	}
	grace := last.AddDate(0, 0, 1)
	y1, m1, d1 := now.Date()
	y2, m2, d2 := grace.Date()
	today := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	limit := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return !today.After(limit)
}
