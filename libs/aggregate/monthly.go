package aggregate

import (
	"context"
	"fmt"
	"time"

	"emarket/libs/observability"
	"emarket/libs/store"
	"emarket/libs/timebucket"
)

// ByMonth aggregates daily averages into monthly averages, one civil month
// at a time. It is the same resume-from-last-write shape as ByDate, just
// bucketed by month instead of by day; the original importer only ever
// populated the daily series, so this closes that gap for the monthly
// summary and prices views.
type ByMonth struct {
	loader store.Store
	saver  store.Store

	sourceSeries string
	destSeries   string

	lastImported *time.Time
}

// NewByMonth creates an aggregator reading sourceSeries (daily averages)
// and writing monthly averages to destSeries on the same store.
func NewByMonth(s store.Store, sourceSeries, destSeries string) *ByMonth {
	return &ByMonth{loader: s, saver: s, sourceSeries: sourceSeries, destSeries: destSeries}
}

// Work rolls the monthly average forward, one civil month at a time, from
// wherever it last left off through lastItemTime.
func (a *ByMonth) Work(ctx context.Context, lastItemTime time.Time) (err error) {
	defer func() { observability.LogAggregateRun(ctx, a.destSeries, lastItemTime, err) }()

	if a.lastImported == nil {
		last, ok, err := a.saver.Last(ctx, a.destSeries)
		if err != nil {
			return fmt.Errorf("aggregate: load resume point: %w", err)
		}
		if ok {
			at := last.At
			a.lastImported = &at
		}
	}

	cursor := epoch
	if a.lastImported != nil {
		cursor = *a.lastImported
	}

	for !cursor.After(lastItemTime) {
		from, to := getFromToMonth(cursor)

		points, err := a.loader.Range(ctx, a.sourceSeries, from, to)
		if err != nil {
			return fmt.Errorf("aggregate: load range [%s,%s): %w", from, to, err)
		}

		if len(points) > 0 {
			lastTime := points[len(points)-1].At
			if avg, ok := calcAvg(points); ok {
				appendErr := a.saver.Append(ctx, a.destSeries, store.Point{At: from, Price: avg})
				observability.RecordAggregateBucket(ctx, a.destSeries, from, appendErr)
				if appendErr != nil {
					return fmt.Errorf("aggregate: save bucket %s: %w", from, appendErr)
				}
			}
			a.lastImported = &lastTime
		}

		cursor = to
	}

	return nil
}

// getFromToMonth is getFromTo's month-bucketed sibling: t's own UTC
// calendar date names the target month, mirroring the day case's literal
// (not Vilnius-converted) date handling.
func getFromToMonth(t time.Time) (from, to time.Time) {
	y, m, _ := t.Date()
	monthStart := timebucket.MidnightOfDate(y, m, 1, vilnius)

	ny, nm := y, m+1
	if nm > time.December {
		nm = time.January
		ny++
	}
	monthEnd := timebucket.MidnightOfDate(ny, nm, 1, vilnius)

	if !monthEnd.After(t) {
		ny2, nm2 := ny, nm+1
		if nm2 > time.December {
			nm2 = time.January
			ny2++
		}
		return monthEnd, timebucket.MidnightOfDate(ny2, nm2, 1, vilnius)
	}
	return monthStart, monthEnd
}
