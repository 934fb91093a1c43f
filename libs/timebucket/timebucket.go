// Package timebucket computes civil-calendar day/month windows and
// boundaries in a fixed time zone, plus the uniform jitter used to smear
// retry/poll timers. All inputs and outputs are UTC instants; the zone
// only governs where the calendar day/month edges fall.
package timebucket

import (
	"math/rand"
	"time"
)

// DayBoundary returns the UTC instant of local midnight in loc, shiftDays
// days away from t's local calendar day. shiftDays may be negative.
//
// "Midnight" is resolved via latestMidnight: for an ambiguous local wall
// clock (fall-back DST transition) the later of the two matching instants
// is used, matching the teacher's reference implementation.
func DayBoundary(t time.Time, loc *time.Location, shiftDays int) time.Time {
	local := t.In(loc).AddDate(0, 0, shiftDays)
	return latestMidnight(local, loc).UTC()
}

// DayWindow returns the half-open [from, to) UTC instants bracketing t's
// local calendar day.
func DayWindow(t time.Time, loc *time.Location) (from, to time.Time) {
	return DayBoundary(t, loc, 0), DayBoundary(t, loc, 1)
}

// MidnightOfDate returns the UTC instant of loc-local midnight on the given
// calendar date. Unlike DayBoundary, the date is taken literally rather than
// derived by converting some instant into loc first — callers that already
// hold bare calendar fields (year, month, day) use this directly.
func MidnightOfDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	local := time.Date(year, month, day, 0, 0, 0, 0, loc)
	return latestMidnight(local, loc).UTC()
}

// MonthBoundary returns the UTC instant of local midnight on the first of
// the month shiftMonths away from t's local calendar month. shiftMonths may
// be negative; the shift uses floor-division semantics (not Go's AddDate
// month-overflow normalization) so that, e.g., shifting January by -2 lands
// on the previous November, not a Go-style rolled-over date.
func MonthBoundary(t time.Time, loc *time.Location, shiftMonths int) time.Time {
	local := t.In(loc)
	m := int(local.Month()) - 1 + shiftMonths
	var yearShift, month int
	if m < 0 {
		yearShift = -1 + m/12
		month = (12 + m%12)
	} else {
		yearShift = m / 12
		month = m % 12
	}
	first := time.Date(local.Year()+yearShift, time.Month(month+1), 1, 0, 0, 0, 0, loc)
	return latestMidnight(first, loc).UTC()
}

// MonthWindow returns the half-open [from, to) UTC instants bracketing t's
// local calendar month.
func MonthWindow(t time.Time, loc *time.Location) (from, to time.Time) {
	return MonthBoundary(t, loc, 0), MonthBoundary(t, loc, 1)
}

// latestMidnight resolves the wall-clock instant year/month/day 00:00:00 in
// loc to an absolute time, preferring the later of the two matching
// instants when that wall clock is ambiguous (DST fall-back produces it
// twice). Civil midnight never actually falls inside Vilnius's transition
// window (which sits at 01:00 UTC / 03:00-04:00 local), so the ambiguous
// branch below is unreachable for the shipped configuration but kept
// correct for any other *time.Location callers might pass.
func latestMidnight(local time.Time, loc *time.Location) time.Time {
	y, mo, d := local.Date()
	candidate := time.Date(y, mo, d, 0, 0, 0, 0, loc)

	before, after := candidate.Add(-2*time.Hour), candidate.Add(2*time.Hour)
	_, offBefore := before.Zone()
	_, offAfter := after.Zone()
	if offBefore == offAfter {
		return candidate // no transition within range: unambiguous
	}

	naive := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	early := naive.Add(-time.Duration(offBefore) * time.Second)
	late := naive.Add(-time.Duration(offAfter) * time.Second)
	if early.After(late) {
		return early
	}
	return late
}

// Jitter returns a uniformly distributed random duration in [0, d). It
// panics if d <= 0.
func Jitter(d time.Duration) time.Duration {
	if d <= 0 {
		panic("timebucket: Jitter requires a positive duration")
	}
	return time.Duration(rand.Int63n(int64(d)))
}
