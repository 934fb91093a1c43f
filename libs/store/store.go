// Package store defines the point-series persistence contract shared by
// the ingest, aggregate, and API components, plus a PostgreSQL-backed
// implementation and an optional read-through cache for API reads.
package store

import (
	"context"
	"time"
)

// Fixed series names, matching the three name-keyed aliases the original
// system used for its time-series keys.
const (
	SeriesHourly  = "np_lt"
	SeriesDaily   = "np_lt_d"
	SeriesMonthly = "np_lt_m"
)

// Point is a single (instant, price) observation.
type Point struct {
	At    time.Time
	Price float64
}

// Store is the persistence contract: ensure a series exists, health-check
// the backend, read the most recent point, append a point with
// last-write-wins semantics, and read a half-open time range.
type Store interface {
	// EnsureSeries prepares series for writes. Implementations backed by a
	// pre-migrated fixed schema may treat this as a no-op.
	EnsureSeries(ctx context.Context, series string) error
	// Ping checks connectivity to the backing store.
	Ping(ctx context.Context) error
	// Last returns the most recent point in series, or ok=false if the
	// series has no points.
	Last(ctx context.Context, series string) (p Point, ok bool, err error)
	// Append writes p to series. Writing a point that already exists at
	// the same instant overwrites the price (last-write-wins).
	Append(ctx context.Context, series string, p Point) error
	// Range returns every point in series within [from, to), ordered by
	// instant ascending.
	Range(ctx context.Context, series string, from, to time.Time) ([]Point, error)
}
