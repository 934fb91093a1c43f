package aggregate

import (
	"context"
	"testing"
	"time"

	"emarket/libs/store"
)

func TestGetFromToMonth(t *testing.T) {
	from, to := getFromToMonth(utc(2023, time.February, 15, 5, 0))
	wantFrom := utc(2023, time.January, 31, 22, 0)
	wantTo := utc(2023, time.February, 28, 22, 0)
	if !from.Equal(wantFrom) || !to.Equal(wantTo) {
		t.Errorf("getFromToMonth = (%s, %s), want (%s, %s)", from, to, wantFrom, wantTo)
	}
}

func TestGetFromToMonthWrapsYear(t *testing.T) {
	from, to := getFromToMonth(utc(2023, time.December, 20, 5, 0))
	wantFrom := utc(2023, time.November, 30, 22, 0)
	wantTo := utc(2023, time.December, 31, 22, 0)
	if !from.Equal(wantFrom) || !to.Equal(wantTo) {
		t.Errorf("getFromToMonth(december) = (%s, %s), want (%s, %s)", from, to, wantFrom, wantTo)
	}
}

func TestByMonthWorkAggregatesOneMonth(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()

	from, _ := getFromToMonth(epoch)
	if err := s.Append(ctx, "daily", store.Point{At: from.AddDate(0, 0, 1), Price: 10}); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "daily", store.Point{At: from.AddDate(0, 0, 5), Price: 30}); err != nil {
		t.Fatal(err)
	}

	agg := NewByMonth(s, "daily", "monthly")
	if err := agg.Work(ctx, from.AddDate(0, 0, 10)); err != nil {
		t.Fatalf("Work: %v", err)
	}

	monthly := s.points["monthly"]
	if len(monthly) != 1 {
		t.Fatalf("len(monthly) = %d, want 1", len(monthly))
	}
	if monthly[0].Price != 20 {
		t.Errorf("monthly[0].Price = %v, want 20", monthly[0].Price)
	}
	if !monthly[0].At.Equal(from) {
		t.Errorf("monthly[0].At = %s, want %s", monthly[0].At, from)
	}
}
