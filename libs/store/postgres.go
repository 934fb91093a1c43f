package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"emarket/libs/database"
)

// Postgres implements Store over a single points(series, at, price) table,
// bootstrapped by the embedded migrations in libs/database.
type Postgres struct {
	db *database.DB
}

// NewPostgres wraps an already-connected, already-migrated database handle.
func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSeries is a no-op: the schema is fixed and created once at startup
// via database.ConnectWithMigrations, not per-series.
func (p *Postgres) EnsureSeries(ctx context.Context, series string) error {
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.HealthCheck(ctx)
}

func (p *Postgres) Last(ctx context.Context, series string) (Point, bool, error) {
	const q = `SELECT at, price FROM points WHERE series = $1 ORDER BY at DESC LIMIT 1`
	row := p.db.QueryRowContext(ctx, q, series)
	var pt Point
	if err := row.Scan(&pt.At, &pt.Price); err != nil {
		if err == sql.ErrNoRows {
			return Point{}, false, nil
		}
		return Point{}, false, fmt.Errorf("store: last(%s): %w", series, err)
	}
	return pt, true, nil
}

func (p *Postgres) Append(ctx context.Context, series string, pt Point) error {
	const q = `
		INSERT INTO points (series, at, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (series, at) DO UPDATE SET price = EXCLUDED.price
	`
	if _, err := p.db.ExecContext(ctx, q, series, pt.At.UTC(), pt.Price); err != nil {
		return fmt.Errorf("store: append(%s, %s): %w", series, pt.At, err)
	}
	return nil
}

func (p *Postgres) Range(ctx context.Context, series string, from, to time.Time) ([]Point, error) {
	const q = `
		SELECT at, price FROM points
		WHERE series = $1 AND at >= $2 AND at < $3
		ORDER BY at ASC
	`
	rows, err := p.db.QueryContext(ctx, q, series, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("store: range(%s): %w", series, err)
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var pt Point
		if err := rows.Scan(&pt.At, &pt.Price); err != nil {
			return nil, fmt.Errorf("store: range(%s) scan: %w", series, err)
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}
