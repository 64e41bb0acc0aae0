// Package runner drives the queue processor. A drain is started by an
// explicit kick (something was just enqueued) and chains itself while the
// processor reports more pending work; a slow fallback tick catches anything
// a broken chain would strand, such as work enqueued right before a restart.
package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	queueuc "github.com/kailas-cloud/linkmesh/internal/usecase/queue"
)

// Drainer processes one queue batch.
type Drainer interface {
	Run(ctx context.Context) (queueuc.Report, error)
}

// Runner owns the drain loop.
type Runner struct {
	drainer    Drainer
	logger     *zap.Logger
	kick       chan struct{}
	drainDelay time.Duration
	fallback   time.Duration
}

// New creates a runner. drainDelay paces chained batches; fallback is the
// safety-net tick interval.
func New(drainer Drainer, logger *zap.Logger, drainDelay, fallback time.Duration) *Runner {
	if drainDelay <= 0 {
		drainDelay = 5 * time.Second
	}
	if fallback <= 0 {
		fallback = time.Hour
	}
	return &Runner{
		drainer:    drainer,
		logger:     logger,
		kick:       make(chan struct{}, 1),
		drainDelay: drainDelay,
		fallback:   fallback,
	}
}

// Kick requests a drain. Never blocks; a kick while one is already pending
// is folded into it.
func (r *Runner) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Start runs the loop until the context is cancelled. Call in a goroutine.
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.fallback)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.kick:
		case <-ticker.C:
		}
		r.drain(ctx)
	}
}

// drain runs batches back to back, paced by drainDelay, until the queue is
// empty or a pass fails. A failed pass stops the chain; the failed items sit
// in the queue for the next kick or fallback tick.
func (r *Runner) drain(ctx context.Context) {
	for {
		report, err := r.drainer.Run(ctx)
		if err != nil {
			r.logger.Error("Drain pass failed", zap.Error(err))
			return
		}
		if !report.MoreWork {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.drainDelay):
		}
	}
}
