package upstream

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	emtesting "emarket/libs/testing"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c := New("A44", "10YLT-1001A0008Q", "test-key")
	c.baseURL = baseURL
	c.maxAttempts = 1
	return c
}

func TestLiveSucceedsOn400(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("no time range specified"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.Live(context.Background()); err != nil {
		t.Errorf("Live() with 400 response = %v, want nil", err)
	}
}

func TestLiveFailsOnOtherStatuses(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusUnauthorized, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		c := newTestClient(t, srv.URL)
		if _, err := c.Live(context.Background()); err == nil {
			t.Errorf("Live() with status %d = nil error, want an error", status)
		}
		srv.Close()
	}
}

func TestUnmarshalEntSOEDoc(t *testing.T) {
	var doc entSOEDoc
	if err := xml.Unmarshal(emtesting.LoadFixture(t, "entsoe_sample.xml"), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if doc.DocType != "A44" {
		t.Errorf("DocType = %q, want A44", doc.DocType)
	}
	if len(doc.TimeSeries) != 1 {
		t.Fatalf("len(TimeSeries) = %d, want 1", len(doc.TimeSeries))
	}
	ts := doc.TimeSeries[0]
	if len(ts.Periods) != 1 {
		t.Fatalf("len(Periods) = %d, want 1", len(ts.Periods))
	}
	period := ts.Periods[0]
	if period.TimeInterval.Start != "2021-12-31T23:00Z" {
		t.Errorf("TimeInterval.Start = %q, want 2021-12-31T23:00Z", period.TimeInterval.Start)
	}
	if period.TimeInterval.End != "2022-01-01T23:00Z" {
		t.Errorf("TimeInterval.End = %q, want 2022-01-01T23:00Z", period.TimeInterval.End)
	}
	if len(period.Points) != 2 {
		t.Fatalf("len(Points) = %d, want 2", len(period.Points))
	}
	if period.Points[0].Position != 1 || period.Points[0].Price != 50.05 {
		t.Errorf("Points[0] = %+v, want {1 50.05}", period.Points[0])
	}
	if period.Points[1].Position != 2 || period.Points[1].Price != 41.33 {
		t.Errorf("Points[1] = %+v, want {2 41.33}", period.Points[1])
	}
}

func TestMapToPoints(t *testing.T) {
	var doc entSOEDoc
	if err := xml.Unmarshal(emtesting.LoadFixture(t, "entsoe_sample.xml"), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	res, err := mapToPoints(doc)
	if err != nil {
		t.Fatalf("mapToPoints: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("len(res) = %d, want 2", len(res))
	}
	if res[0].Price != 50.05 {
		t.Errorf("res[0].Price = %v, want 50.05", res[0].Price)
	}
	if got := res[0].At.UnixMilli(); got != 1640991600000 {
		t.Errorf("res[0].At = %d, want 1640991600000", got)
	}
	if res[1].Price != 41.33 {
		t.Errorf("res[1].Price = %v, want 41.33", res[1].Price)
	}
	if got := res[1].At.UnixMilli(); got != 1640995200000 {
		t.Errorf("res[1].At = %d, want 1640995200000", got)
	}
}

func TestToTimeStr(t *testing.T) {
	t1 := time.UnixMilli(1640991600000).UTC()
	if got := toTimeStr(t1); got != "202112312300" {
		t.Errorf("toTimeStr(%v) = %q, want 202112312300", t1, got)
	}

	t2 := time.UnixMilli(1640995200000).UTC()
	if got := toTimeStr(t2); got != "202201010000" {
		t.Errorf("toTimeStr(%v) = %q, want 202201010000", t2, got)
	}
}
