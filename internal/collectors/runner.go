package collectors

import (
	"context"
	"time"

	"github.com/hetulpatel/sportsarb/internal/logging"
)

// Collect runs one fetch and degrades a venue-level failure to an empty
// result so the other venue's pipeline is unaffected.
func Collect(ctx context.Context, collector Collector, opts FetchOptions) []Entry {
	start := time.Now()
	entries, err := collector.Fetch(ctx, opts)
	if err != nil {
		logging.Errorf("[%s] %s fetch failed after %s: %v", collector.Name(), opts.Sport, time.Since(start).Round(time.Millisecond), err)
		return nil
	}
	logging.Infof("[%s] %s loaded %d entries in %s", collector.Name(), opts.Sport, len(entries), time.Since(start).Round(time.Millisecond))
	return entries
}

// RunLoop calls fn immediately and then once per interval until ctx is done.
// Errors are logged and never stop the loop.
func RunLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			logging.Errorf("[%s] cycle error: %v", name, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
