// Package api implements the read-only HTTP surface over the point store:
// live status, the current price, a summary of recent averages, and raw
// series reads.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"emarket/libs/store"
	"emarket/libs/timebucket"
)

var vilnius = mustLoadVilnius()

func mustLoadVilnius() *time.Location {
	loc, err := time.LoadLocation("Europe/Vilnius")
	if err != nil {
		panic("api: load Europe/Vilnius: " + err.Error())
	}
	return loc
}

// Server holds the dependencies shared by every handler.
type Server struct {
	Store   store.Store
	Version string
}

// liveResponse is the {redis,status,version} shape; the redis field carries
// the ping result of whatever backing store is configured.
type liveResponse struct {
	Store   string `json:"redis"`
	Status  bool   `json:"status"`
	Version string `json:"version"`
}

// Live reports whether the backing store is reachable.
func (s *Server) Live(w http.ResponseWriter, r *http.Request) {
	res := liveResponse{Status: true, Store: "ok", Version: s.Version}
	if err := s.Store.Ping(r.Context()); err != nil {
		res.Status = false
		res.Store = err.Error()
	}
	writeJSON(w, res)
}

// nowData is the single current-or-most-recent price point.
type nowData struct {
	At    int64    `json:"at"`
	Price *float64 `json:"price"`
}

// Now returns the most recent price at or before the current moment,
// within the current hour's publication window.
func (s *Server) Now(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now.Truncate(time.Hour)
	to := from.Add(50 * time.Minute)

	points, err := s.Store.Range(r.Context(), store.SeriesHourly, from, to)
	if err != nil {
		writeError(w, serverError(err))
		return
	}
	if len(points) == 0 {
		writeError(w, serverError(errNoDataAvailable))
		return
	}

	res := nowData{At: points[0].At.UnixMilli(), Price: floatPtr(points[0].Price)}
	for _, p := range points {
		if !p.At.After(now) {
			res.At = p.At.UnixMilli()
			res.Price = floatPtr(p.Price)
		} else {
			break
		}
	}
	writeJSON(w, res)
}

var errNoDataAvailable = errString("no data available")

type errString string

func (e errString) Error() string { return string(e) }

// summaryData mirrors SummaryData: a handful of average prices over
// standard windows, any of which may be absent if too little data exists.
type summaryData struct {
	At               int64    `json:"at"`
	CurrentMonthAvg  *float64 `json:"current_month_avg,omitempty"`
	PreviousMonthAvg *float64 `json:"previous_month_avg,omitempty"`
	TodayAvg         *float64 `json:"today_avg,omitempty"`
	TomorrowAvg      *float64 `json:"tomorrow_avg,omitempty"`
	YesterdayAvg     *float64 `json:"yesterday_avg,omitempty"`
	Last30DAvg       *float64 `json:"last_30d_avg,omitempty"`
	Last7Avg         *float64 `json:"last_7_avg,omitempty"`
}

// Summary returns a set of headline average prices anchored at an instant
// (?at=<epoch millis>, defaulting to now).
func (s *Server) Summary(w http.ResponseWriter, r *http.Request) {
	at := time.Now().UTC()
	if raw := r.URL.Query().Get("at"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, badRequest("invalid at", err))
			return
		}
		at = time.UnixMilli(ms).UTC()
	}

	ctx := r.Context()
	res := summaryData{At: at.UnixMilli()}
	var err error

	if res.CurrentMonthAvg, err = s.firstValue(ctx, store.SeriesMonthly, monthBound(at, 0), monthBound(at, 1), 1); err != nil {
		writeError(w, err)
		return
	}
	if res.PreviousMonthAvg, err = s.firstValue(ctx, store.SeriesMonthly, monthBound(at, -1), monthBound(at, 0), 1); err != nil {
		writeError(w, err)
		return
	}
	if res.TodayAvg, err = s.firstValue(ctx, store.SeriesDaily, dayBound(at, 0), dayBound(at, 1), 1); err != nil {
		writeError(w, err)
		return
	}
	if res.TomorrowAvg, err = s.firstValue(ctx, store.SeriesDaily, dayBound(at, 1), dayBound(at, 3), 2); err != nil {
		writeError(w, err)
		return
	}
	if res.YesterdayAvg, err = s.firstValue(ctx, store.SeriesDaily, dayBound(at, -1), dayBound(at, 0), 1); err != nil {
		writeError(w, err)
		return
	}
	if res.Last30DAvg, err = s.avgValue(ctx, store.SeriesDaily, dayBound(at, -29), dayBound(at, 1)); err != nil {
		writeError(w, err)
		return
	}
	if res.Last7Avg, err = s.avgValue(ctx, store.SeriesDaily, dayBound(at, -6), dayBound(at, 1)); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, res)
}

func monthBound(at time.Time, months int) time.Time {
	return timebucket.MonthBoundary(at, vilnius, months)
}

func dayBound(at time.Time, days int) time.Time {
	return timebucket.DayBoundary(at, vilnius, days)
}

// firstValue returns the price of the earliest point in [from, to), or nil
// if fewer than minItems points exist in that range.
func (s *Server) firstValue(ctx context.Context, series string, from, to time.Time, minItems int) (*float64, error) {
	points, err := s.Store.Range(ctx, series, from, to)
	if err != nil {
		return nil, serverError(err)
	}
	if len(points) < minItems {
		return nil, nil
	}
	return floatPtr(points[0].Price), nil
}

// avgValue returns the mean price over [from, to), or nil if empty.
func (s *Server) avgValue(ctx context.Context, series string, from, to time.Time) (*float64, error) {
	points, err := s.Store.Range(ctx, series, from, to)
	if err != nil {
		return nil, serverError(err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	var sum float64
	for _, p := range points {
		sum += p.Price
	}
	return floatPtr(sum / float64(len(points))), nil
}

// Prices serves a raw series read, selected by ?time_range=hourly|daily|monthly
// (default monthly) and bounded by optional ?from=&to= (epoch millis).
func (s *Server) Prices(w http.ResponseWriter, r *http.Request) {
	series, apiErr := seriesFromTimeRange(r.URL.Query().Get("time_range"))
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}

	from := time.Unix(0, 0).UTC()
	to := time.Now().UTC().AddDate(1, 0, 0)
	if raw := r.URL.Query().Get("from"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, badRequest("invalid from", err))
			return
		}
		from = time.UnixMilli(ms).UTC()
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, badRequest("invalid to", err))
			return
		}
		to = time.UnixMilli(ms).UTC()
	}

	points, err := s.Store.Range(r.Context(), series, from, to)
	if err != nil {
		writeError(w, serverError(err))
		return
	}
	writeJSON(w, points)
}

func seriesFromTimeRange(raw string) (string, *apiError) {
	switch strings.ToLower(raw) {
	case "hourly":
		return store.SeriesHourly, nil
	case "daily":
		return store.SeriesDaily, nil
	case "monthly", "":
		return store.SeriesMonthly, nil
	default:
		return "", badRequest("invalid time_range value: "+raw, nil)
	}
}

func floatPtr(v float64) *float64 { return &v }
