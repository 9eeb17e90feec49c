package domain

import "time"

// Clip decides how much of raw may be applied to a user's reputation given
// daySum, the applied sum of that user's entries so far today.
//
// The result never moves the daily sum past Caps.Gain or Caps.Loss, and a
// single event can at most reach a boundary, never cross it. If the daily
// sum is already beyond a cap, a same-direction raw yields zero: an
// existing breach is never widened.
func Clip(caps Caps, daySum, raw int) int {
	projected := daySum + raw

	if projected > caps.Gain {
		applied := caps.Gain - daySum
		if applied < 0 {
			return 0
		}
		return applied
	}

	if projected < caps.Loss {
		applied := caps.Loss - daySum
		if applied > 0 {
			return 0
		}
		return applied
	}

	return raw
}

// DayWindow returns the half-open interval [start, end) of the calendar day
// containing asOf, in asOf's location. Every day-sum in the system is
// computed over this window so caps are enforced against one consistent
// calendar.
func DayWindow(asOf time.Time) (time.Time, time.Time) {
	year, month, day := asOf.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, asOf.Location())
	return start, start.AddDate(0, 0, 1)
}
