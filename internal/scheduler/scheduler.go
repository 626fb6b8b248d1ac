// Package scheduler re-runs the crawl pipeline at a fixed interval.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Crawler is the slice of the pipeline the scheduler drives.
type Crawler interface {
	CrawlAll(ctx context.Context)
}

// Scheduler is an owned handle for the periodic crawl loop. Stop
// cancels the loop cooperatively and waits for the in-flight cycle to
// reach a safe stopping point; no partial record is ever persisted
// because inserts happen only after a detail unit fully completes.
type Scheduler struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the periodic loop: one immediate cycle, then one per
// interval. The returned handle owns the loop; there is no ambient
// global state.
func Start(ctx context.Context, crawler Crawler, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval < time.Second {
		interval = time.Second
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s := &Scheduler{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		logger.Info("periodic crawler started", zap.Duration("interval", interval))
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		crawler.CrawlAll(loopCtx)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				crawler.CrawlAll(loopCtx)
			}
		}
	}()
	return s
}

// Stop cancels the loop and blocks until the current cycle returns.
// Safe to call more than once.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.done
}
