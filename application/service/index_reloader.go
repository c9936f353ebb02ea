package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// IndexStamper reports when the persisted index last changed.
type IndexStamper interface {
	Stamp() (time.Time, bool)
}

// IndexReloader polls the index on a timer and drops the matcher's loaded
// index when a build has replaced it, so a running server serves the new
// catalog without a restart.
type IndexReloader struct {
	stamper  IndexStamper
	matcher  *Matcher
	logger   *slog.Logger
	interval time.Duration

	last   time.Time
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewIndexReloader creates an IndexReloader. A non-positive interval
// disables it.
func NewIndexReloader(interval time.Duration, stamper IndexStamper, matcher *Matcher, logger *slog.Logger) *IndexReloader {
	if logger == nil {
		logger = slog.Default()
	}
	r := &IndexReloader{
		stamper:  stamper,
		matcher:  matcher,
		logger:   logger,
		interval: interval,
	}
	r.last, _ = stamper.Stamp()
	return r
}

// Start begins polling in a background goroutine.
// If disabled, this is a no-op.
func (r *IndexReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Debug("index reload disabled")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Go(func() {
		r.run(ctx)
	})

	r.logger.Debug("index reload started", slog.Duration("interval", r.interval))
}

// Stop cancels the background goroutine and waits for it to finish.
func (r *IndexReloader) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

func (r *IndexReloader) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Check()
		}
	}
}

// Check compares the index stamp with the last one seen and resets the
// matcher when it changed. It reports whether a reset happened.
func (r *IndexReloader) Check() bool {
	stamp, ok := r.stamper.Stamp()
	if !ok {
		return false
	}

	r.mu.Lock()
	changed := !stamp.Equal(r.last)
	r.last = stamp
	r.mu.Unlock()

	if !changed {
		return false
	}
	r.matcher.Reset()
	r.logger.Info("catalog index changed, reloading on next query", slog.Time("modified", stamp))
	return true
}
