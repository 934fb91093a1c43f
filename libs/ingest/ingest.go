// Package ingest drives the windowed poll loop against an upstream loader:
// fetch a 7-day window, forward every point to a save channel, decide how
// long to sleep before the next window based on how stale the latest point
// is, and notify a watermark channel once import settles.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"emarket/libs/observability"
	"emarket/libs/store"
	"emarket/libs/timebucket"
)

// Loader fetches data from the upstream source.
type Loader interface {
	// Live performs a cheap liveness check against the upstream API.
	Live(ctx context.Context) (string, error)
	// Retrieve returns every point published in [from, to).
	Retrieve(ctx context.Context, from, to time.Time) ([]store.Point, error)
}

// Limiter is waited on before every upstream call.
type Limiter interface {
	Wait(ctx context.Context) error
}

// WorkingData is everything Run needs to drive one ingest loop.
type WorkingData struct {
	StartFrom time.Time
	Loader    Loader
	Limiter   Limiter
	// Data receives every fetched point, for the saver loop to persist.
	Data chan<- store.Point
	// HighWatermark receives the latest imported instant after each
	// settled window, for the aggregator loop to pick up.
	HighWatermark chan<- time.Time
}

const takeWindow = 7 * 24 * time.Hour

// Run drives the ingest loop until ctx is cancelled. It performs a liveness
// check against the loader before entering the loop; a failed liveness
// check is returned as a fatal startup error.
func Run(ctx context.Context, wd WorkingData) error {
	log.Printf("ingest: importing from %s", wd.StartFrom)
	if _, err := wd.Loader.Live(ctx); err != nil {
		return fmt.Errorf("ingest: upstream liveness check: %w", err)
	}
	log.Printf("ingest: upstream OK")

	// Prime the aggregators with the starting cursor before the first fetch.
	select {
	case wd.HighWatermark <- wd.StartFrom:
	case <-ctx.Done():
		return nil
	}

	from := wd.StartFrom
	for {
		select {
		case <-ctx.Done():
			log.Printf("ingest: cancel detected")
			return nil
		default:
		}

		to := from.Add(takeWindow)
		observability.LogImportStart(ctx, store.SeriesHourly, from, to)
		windowStart := time.Now()
		lastItemTime, imported, err := importWindow(ctx, wd, from, to)
		duration := time.Since(windowStart)
		observability.LogImportEnd(ctx, store.SeriesHourly, imported, duration, err)
		observability.RecordImportBatch(ctx, store.SeriesHourly, imported, duration, err)
		if err != nil {
			return err
		}
		log.Printf("ingest: got last item time %s, imported %d", lastItemTime, imported)

		now := time.Now().UTC()
		switch {
		case imported == 0 && to.Before(now):
			// Empty historical window: walk forward a week minus a day of
			// overlap, no sleep.
			from = from.Add(takeWindow - 24*time.Hour)
			continue
		case imported == 0:
			log.Printf("ingest: no new imports")
			sleepFor := getSleep(lastItemTime, now, timebucket.Jitter)
			log.Printf("ingest: sleep until %s", now.Add(sleepFor))
			timer := time.NewTimer(sleepFor)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				log.Printf("ingest: cancel detected during sleep")
				return nil
			}
		}

		select {
		case wd.HighWatermark <- lastItemTime:
		case <-ctx.Done():
			return nil
		}
		from = lastItemTime
	}
}

// getSleep computes how long to wait before the next poll, given the most
// recently seen point's instant. Day-ahead prices are expected to publish
// by 10h10m before the next delivery day; sleep until that deadline, but
// never less than 3 minutes. Either way a uniform jitter (via jitterFn) is
// added to avoid synchronized polling.
func getSleep(lastItemTime, now time.Time, jitterFn func(time.Duration) time.Duration) time.Duration {
	expectedNext := lastItemTime.Add(-10*time.Hour - 10*time.Minute)
	sleep := 3 * time.Minute
	if untilNext := expectedNext.Sub(now); untilNext > sleep {
		sleep = untilNext
	}
	return sleep + jitterFn(5*time.Minute)
}

// importWindow waits for limiter clearance, fetches [from, to), forwards
// every point to wd.Data, and returns the latest instant seen (or from
// itself, with imported=0, if nothing new arrived).
func importWindow(ctx context.Context, wd WorkingData, from, to time.Time) (time.Time, int, error) {
	if err := wd.Limiter.Wait(ctx); err != nil {
		return time.Time{}, 0, fmt.Errorf("ingest: rate limiter: %w", err)
	}

	points, err := wd.Loader.Retrieve(ctx, from, to)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("ingest: retrieve: %w", err)
	}
	log.Printf("ingest: got %d points", len(points))

	latest := from
	for _, p := range points {
		if latest.Before(p.At) {
			latest = p.At
		}
		select {
		case wd.Data <- p:
		case <-ctx.Done():
			return latest, 0, ctx.Err()
		}
	}

	if latest.Equal(from) {
		return latest, 0, nil
	}
	return latest, len(points), nil
}
