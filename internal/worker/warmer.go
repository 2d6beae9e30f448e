// Package worker runs background jobs on a cron schedule.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"unera/internal/middleware"
	"unera/internal/observability"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// FeedWarmer precomputes the anonymous feed.
type FeedWarmer interface {
	WarmAnonymousFeed(ctx context.Context) (int, error)
}

// Warmer refreshes the cached anonymous feed on a schedule.
type Warmer struct {
	cron    *cron.Cron
	feed    FeedWarmer
	timeout time.Duration

	mu      sync.Mutex
	started bool
}

// NewWarmer schedules feed warm-ups. schedule accepts standard five field
// cron expressions and descriptors such as "@every 5m".
func NewWarmer(feed FeedWarmer, schedule string, timeout time.Duration) (*Warmer, error) {
	logger := cron.PrintfLogger(slog.NewLogLogger(middleware.Logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	if timeout <= 0 {
		timeout = time.Minute
	}
	w := &Warmer{cron: c, feed: feed, timeout: timeout}

	if _, err := c.AddFunc(schedule, w.run); err != nil {
		return nil, fmt.Errorf("invalid warm schedule %q: %w", schedule, err)
	}
	return w, nil
}

// RunOnce warms the anonymous feed immediately.
func (w *Warmer) RunOnce(ctx context.Context) error {
	runID := uuid.NewString()
	start := time.Now()
	log := middleware.Logger.With(slog.String("run_id", runID))

	ctx, span := observability.StartSpan(ctx, "worker.feed_warm")
	defer span.End()

	n, err := w.feed.WarmAnonymousFeed(ctx)
	if err != nil {
		observability.FeedWarmRuns.WithLabelValues("error").Inc()
		observability.RecordError(span, err)
		log.ErrorContext(ctx, "feed warm-up failed", slog.String("error", err.Error()))
		return err
	}

	observability.FeedWarmRuns.WithLabelValues("ok").Inc()
	log.InfoContext(ctx, "feed warm-up complete",
		slog.Int("posts", n),
		slog.Duration("took", time.Since(start)))
	return nil
}

func (w *Warmer) run() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	_ = w.RunOnce(ctx)
}

// Start begins running the schedule in the background.
func (w *Warmer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		w.cron.Start()
		w.started = true
	}
}

// Stop halts the schedule and waits for a running warm-up to finish or ctx to expire.
func (w *Warmer) Stop(ctx context.Context) {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	done := w.cron.Stop()
	w.mu.Unlock()

	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
