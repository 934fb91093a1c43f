package aggregate

import (
	"context"
	"testing"
	"time"

	"emarket/libs/store"
)

func utc(y int, m time.Month, d, h, mi int) time.Time {
	return time.Date(y, m, d, h, mi, 0, 0, time.UTC)
}

func TestGetFromToAddsDay(t *testing.T) {
	from, to := getFromTo(utc(2023, time.January, 1, 5, 12))
	wantFrom := utc(2022, time.December, 31, 22, 0)
	wantTo := utc(2023, time.January, 1, 22, 0)
	if !from.Equal(wantFrom) || !to.Equal(wantTo) {
		t.Errorf("getFromTo = (%s, %s), want (%s, %s)", from, to, wantFrom, wantTo)
	}

	// Spring-forward civil day: Vilnius midnight-to-midnight is 23h on
	// 2023-03-26, so the bucket's UTC width shrinks by an hour.
	from, to = getFromTo(utc(2023, time.March, 26, 5, 12))
	wantFrom = utc(2023, time.March, 25, 22, 0)
	wantTo = utc(2023, time.March, 26, 21, 0)
	if !from.Equal(wantFrom) || !to.Equal(wantTo) {
		t.Errorf("getFromTo (DST) = (%s, %s), want (%s, %s)", from, to, wantFrom, wantTo)
	}
}

func TestGetFromToMoves(t *testing.T) {
	_, firstTo := getFromTo(utc(2023, time.January, 1, 5, 12))
	from, to := getFromTo(firstTo)
	wantFrom := utc(2023, time.January, 1, 22, 0)
	wantTo := utc(2023, time.January, 2, 22, 0)
	if !from.Equal(wantFrom) || !to.Equal(wantTo) {
		t.Errorf("getFromTo(next) = (%s, %s), want (%s, %s)", from, to, wantFrom, wantTo)
	}
}

func TestGetFromToMovesAcrossSpringForward(t *testing.T) {
	// Chain getFromTo the way Work's loop does (cursor = to), starting the
	// day before Vilnius's 2023 spring-forward transition, so the fallback
	// branch (cursor landing exactly on the previous dayEnd) is the one
	// exercised across the DST boundary.
	_, marchTo := getFromTo(utc(2023, time.March, 25, 5, 0))
	wantMarchTo := utc(2023, time.March, 25, 22, 0)
	if !marchTo.Equal(wantMarchTo) {
		t.Fatalf("getFromTo(March 25) to = %s, want %s", marchTo, wantMarchTo)
	}

	from, to := getFromTo(marchTo)
	wantFrom := utc(2023, time.March, 25, 22, 0)
	wantTo := utc(2023, time.March, 26, 21, 0)
	if !from.Equal(wantFrom) || !to.Equal(wantTo) {
		t.Errorf("getFromTo(March 26, chained) = (%s, %s), want (%s, %s)", from, to, wantFrom, wantTo)
	}

	from, to = getFromTo(to)
	wantFrom = utc(2023, time.March, 26, 21, 0)
	wantTo = utc(2023, time.March, 27, 21, 0)
	if !from.Equal(wantFrom) || !to.Equal(wantTo) {
		t.Errorf("getFromTo(March 27, chained) = (%s, %s), want (%s, %s)", from, to, wantFrom, wantTo)
	}
}

func TestCalcAvg(t *testing.T) {
	if _, ok := calcAvg(nil); ok {
		t.Error("calcAvg(nil) should report ok=false")
	}
	avg, ok := calcAvg([]store.Point{{Price: 10}, {Price: 20}, {Price: 30}})
	if !ok || avg != 20 {
		t.Errorf("calcAvg = (%v, %v), want (20, true)", avg, ok)
	}
}

type memStore struct {
	points map[string][]store.Point
	last   map[string]store.Point
}

func newMemStore() *memStore {
	return &memStore{points: map[string][]store.Point{}, last: map[string]store.Point{}}
}

func (m *memStore) EnsureSeries(ctx context.Context, series string) error { return nil }
func (m *memStore) Ping(ctx context.Context) error                        { return nil }

func (m *memStore) Last(ctx context.Context, series string) (store.Point, bool, error) {
	p, ok := m.last[series]
	return p, ok, nil
}

func (m *memStore) Append(ctx context.Context, series string, p store.Point) error {
	m.points[series] = append(m.points[series], p)
	if cur, ok := m.last[series]; !ok || p.At.After(cur.At) {
		m.last[series] = p
	}
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

func TestByDateWorkAggregatesOneDay(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()

	from, to := getFromTo(epoch)
	_ = to
	if err := s.Append(ctx, "hourly", store.Point{At: from.Add(time.Hour), Price: 10}); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "hourly", store.Point{At: from.Add(2 * time.Hour), Price: 30}); err != nil {
		t.Fatal(err)
	}

	agg := NewByDate(s, "hourly", "daily")
	if err := agg.Work(ctx, from.Add(3*time.Hour)); err != nil {
		t.Fatalf("Work: %v", err)
	}

	daily := s.points["daily"]
	if len(daily) != 1 {
		t.Fatalf("len(daily) = %d, want 1", len(daily))
	}
	if daily[0].Price != 20 {
		t.Errorf("daily[0].Price = %v, want 20", daily[0].Price)
	}
	if !daily[0].At.Equal(from) {
		t.Errorf("daily[0].At = %s, want %s", daily[0].At, from)
	}
}
