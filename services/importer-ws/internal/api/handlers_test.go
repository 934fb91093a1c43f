package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"emarket/libs/store"
	emtesting "emarket/libs/testing"
)

type memStore struct {
	points map[string][]store.Point
	pingErr error
}

func newMemStore() *memStore {
	return &memStore{points: map[string][]store.Point{}}
}

func (m *memStore) EnsureSeries(ctx context.Context, series string) error { return nil }
func (m *memStore) Ping(ctx context.Context) error                        { return m.pingErr }

func (m *memStore) Last(ctx context.Context, series string) (store.Point, bool, error) {
	pts := m.points[series]
	if len(pts) == 0 {
		return store.Point{}, false, nil
	}
	return pts[len(pts)-1], true, nil
}

func (m *memStore) Append(ctx context.Context, series string, p store.Point) error {
	m.points[series] = append(m.points[series], p)
	return nil
}

func (m *memStore) Range(ctx context.Context, series string, from, to time.Time) ([]store.Point, error) {
	var out []store.Point
	for _, p := range m.points[series] {
		if !p.At.Before(from) && p.At.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestLiveReportsStoreStatus(t *testing.T) {
	s := newMemStore()
	srv := &Server{Store: s, Version: "1.0"}

	rw := httptest.NewRecorder()
	srv.Live(rw, httptest.NewRequest(http.MethodGet, "/live", nil))

	var res liveResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Status || res.Version != "1.0" {
		t.Errorf("unexpected live response: %+v", res)
	}
}

func TestLiveResponseShape(t *testing.T) {
	s := newMemStore()
	srv := &Server{Store: s, Version: "1.0"}

	rw := httptest.NewRecorder()
	srv.Live(rw, httptest.NewRequest(http.MethodGet, "/live", nil))

	var res liveResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	emtesting.Golden(t, "live_response", res)
}

func TestNowReturns500WhenRangeEmpty(t *testing.T) {
	s := newMemStore()
	srv := &Server{Store: s}

	rw := httptest.NewRecorder()
	srv.Now(rw, httptest.NewRequest(http.MethodGet, "/np/now", nil))

	if rw.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rw.Code)
	}
}

func TestNowReturnsLatestAtOrBeforeNow(t *testing.T) {
	s := newMemStore()
	srv := &Server{Store: s}

	now := time.Now().UTC()
	hourStart := now.Truncate(time.Hour)
	s.points[store.SeriesHourly] = []store.Point{
		{At: hourStart, Price: 10},
		{At: hourStart.Add(now.Sub(hourStart) / 2), Price: 20},
	}

	rw := httptest.NewRecorder()
	srv.Now(rw, httptest.NewRequest(http.MethodGet, "/np/now", nil))

	if rw.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rw.Code, rw.Body.String())
	}
	var res nowData
	if err := json.Unmarshal(rw.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Price == nil || *res.Price != 20 {
		t.Errorf("price = %v, want 20", res.Price)
	}
}

func TestPricesInvalidTimeRangeReturns400(t *testing.T) {
	s := newMemStore()
	srv := &Server{Store: s}

	req := httptest.NewRequest(http.MethodGet, "/prices?time_range=weekly", nil)
	rw := httptest.NewRecorder()
	srv.Prices(rw, req)

	if rw.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rw.Code)
	}
}

func TestPricesDefaultsToMonthly(t *testing.T) {
	s := newMemStore()
	srv := &Server{Store: s}
	s.points[store.SeriesMonthly] = []store.Point{{At: time.Now().UTC(), Price: 42}}

	req := httptest.NewRequest(http.MethodGet, "/prices", nil)
	rw := httptest.NewRecorder()
	srv.Prices(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rw.Code)
	}
	var points []store.Point
	if err := json.Unmarshal(rw.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 1 || points[0].Price != 42 {
		t.Errorf("points = %+v, want one point at 42", points)
	}
}

func TestSummaryTomorrowRequiresTwoPoints(t *testing.T) {
	s := newMemStore()
	srv := &Server{Store: s}

	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	tomorrowStart := dayBound(at, 1)
	s.points[store.SeriesDaily] = []store.Point{{At: tomorrowStart, Price: 55}}

	req := httptest.NewRequest(http.MethodGet, "/summary", nil)
	q := req.URL.Query()
	q.Set("at", "1718452800000")
	req.URL.RawQuery = q.Encode()

	rw := httptest.NewRecorder()
	srv.Summary(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rw.Code, rw.Body.String())
	}
	var res summaryData
	if err := json.Unmarshal(rw.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TomorrowAvg != nil {
		t.Errorf("TomorrowAvg = %v, want nil with only one point", res.TomorrowAvg)
	}

	s.points[store.SeriesDaily] = append(s.points[store.SeriesDaily], store.Point{At: tomorrowStart.Add(time.Hour), Price: 65})

	rw = httptest.NewRecorder()
	srv.Summary(rw, req)
	if err := json.Unmarshal(rw.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TomorrowAvg == nil {
		t.Error("TomorrowAvg = nil, want a value with two points")
	}
}
