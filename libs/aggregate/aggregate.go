// Package aggregate derives daily averages from hourly points (ByDate) and
// monthly averages from daily points (ByMonth) as new watermark instants
// arrive, resuming from whatever it last wrote so a restart doesn't
// reprocess the whole history.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"emarket/libs/observability"
	"emarket/libs/store"
	"emarket/libs/timebucket"
)

// epoch is the default starting bucket when the destination series holds
// no aggregate yet.
var epoch = time.Date(2012, time.January, 1, 0, 0, 0, 0, time.UTC)

var vilnius *time.Location

func init() {
	loc, err := time.LoadLocation("Europe/Vilnius")
	if err != nil {
		panic(fmt.Sprintf("aggregate: load Europe/Vilnius: %v", err))
	}
	vilnius = loc
}

// ByDate aggregates hourly points into daily averages, one civil day at a
// time, resuming from the last daily point it wrote.
type ByDate struct {
	loader store.Store
	saver  store.Store

	sourceSeries string
	destSeries   string

	lastImported *time.Time
}

// NewByDate creates an aggregator reading sourceSeries and writing daily
// averages to destSeries on the same store.
func NewByDate(s store.Store, sourceSeries, destSeries string) *ByDate {
	return &ByDate{loader: s, saver: s, sourceSeries: sourceSeries, destSeries: destSeries}
}

// Work rolls the daily average forward, one civil day at a time, from
// wherever it last left off through lastItemTime.
func (a *ByDate) Work(ctx context.Context, lastItemTime time.Time) (err error) {
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
		from, to := getFromTo(cursor)

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

func calcAvg(points []store.Point) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range points {
		sum += p.Price
	}
	return sum / float64(len(points)), true
}

// getFromTo returns the half-open [from, to) UTC instants of the Vilnius
// civil day containing t, where t's own UTC calendar date (not its
// Vilnius-local date) names the target day. If the day boundary computed
// from that date has already passed t — the steady-state case, since
// Work's loop advances cursor to the previous to on every iteration — both
// bounds are shifted a day forward by recomputing via MidnightOfDate, not
// by adding 24h to the already-resolved instants: a flat +24h would carry
// a DST-shifted offset across the next transition and misplace the
// boundary by an hour on spring-forward/fall-back dates.
func getFromTo(t time.Time) (from, to time.Time) {
	y, m, d := t.Date()
	dayStart := timebucket.MidnightOfDate(y, m, d, vilnius)

	next := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	ny, nm, nd := next.Date()
	dayEnd := timebucket.MidnightOfDate(ny, nm, nd, vilnius)

	if !dayEnd.After(t) {
		next2 := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
		ny2, nm2, nd2 := next2.Date()
		return dayEnd, timebucket.MidnightOfDate(ny2, nm2, nd2, vilnius)
	}
	return dayStart, dayEnd
}
