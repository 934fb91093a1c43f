package store

import (
	"context"
	"os"
	"testing"
	"time"

	"emarket/libs/database"
)

// TestPostgresRoundTrip exercises Append/Last/Range against a real
// PostgreSQL instance. It is skipped unless STORE_TEST_DATABASE_URL is set,
// following the pack's convention of env-gated integration tests rather
// than a mocked database/sql driver.
func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("STORE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("STORE_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := database.DefaultConfig()
	cfg.DSN = dsn
	db, err := database.ConnectWithMigrations(ctx, cfg, "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	s := NewPostgres(db)
	series := "test_series"

	if err := s.EnsureSeries(ctx, series); err != nil {
		t.Fatalf("EnsureSeries: %v", err)
	}

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Append(ctx, series, Point{At: at, Price: 10}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// Overwrite: last-write-wins at the same instant.
	if err := s.Append(ctx, series, Point{At: at, Price: 20}); err != nil {
		t.Fatalf("Append overwrite: %v", err)
	}

	last, ok, err := s.Last(ctx, series)
	if err != nil || !ok {
		t.Fatalf("Last: ok=%v err=%v", ok, err)
	}
	if last.Price != 20 {
		t.Errorf("Last.Price = %v, want 20 (last-write-wins)", last.Price)
	}

	points, err := s.Range(ctx, series, at, at.Add(time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(points) != 1 || points[0].Price != 20 {
		t.Errorf("Range = %+v, want single point at 20", points)
	}
}
