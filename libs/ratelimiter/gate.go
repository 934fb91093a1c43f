// Package ratelimiter provides the shared courtesy limiter the upstream
// loader waits on before every ENTSOE request: 60 tokens/minute plus
// bounded jitter, with acquisition serialized so only one caller is ever
// waiting on the bucket at a time.
package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"emarket/libs/timebucket"
)

const (
	// Capacity is the token bucket size and refill rate: 60 per minute.
	Capacity = 60
	// MaxJitter bounds the extra wait applied after a token is granted.
	MaxJitter = 3 * time.Second
)

// Gate is a mutex-guarded token-bucket limiter. rate.Limiter is itself safe
// for concurrent use, but Gate additionally serializes acquisition so that
// only one caller is ever in the wait/jitter sequence at once, matching the
// "acquire exclusively for the duration of one upstream call" contract.
type Gate struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// New creates a Gate with the standard 60/minute capacity.
func New() *Gate {
	return &Gate{
		limiter: rate.NewLimiter(rate.Limit(float64(Capacity)/60.0), Capacity),
	}
}

// Wait blocks until a token is available, then sleeps an additional
// uniform [0, 3s) jitter before returning. It holds the Gate's mutex for
// its entire duration, so concurrent callers queue up one at a time.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	j := timebucket.Jitter(MaxJitter)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(j):
		return nil
	}
}
