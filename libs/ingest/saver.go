package ingest

import (
	"context"
	"fmt"

	"emarket/libs/store"
)

// RunSaver drains data, appending every point to store under series, until
// the channel is closed or ctx is cancelled.
func RunSaver(ctx context.Context, s store.Store, series string, data <-chan store.Point) error {
	for {
		select {
		case p, ok := <-data:
			if !ok {
				return nil
			}
			if err := s.Append(ctx, series, p); err != nil {
				return fmt.Errorf("ingest: save point: %w", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
