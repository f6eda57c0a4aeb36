package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/FlowNice/job-application-agent/internal/pipeline"
)

// Cycler runs one scan cycle.
type Cycler interface {
	RunCycle(ctx context.Context) pipeline.CycleStats
}

// Scheduler owns the main loop: one immediate cycle, then one per interval.
type Scheduler struct {
	cycler   Cycler
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that runs cycler at the given interval.
func NewScheduler(cycler Cycler, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cycler:   cycler,
		interval: interval,
		logger:   logger,
	}
}

// Run starts the scan loop. It runs one immediate cycle, then ticks on the
// configured interval. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", "interval", s.interval.String())

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle runs one cycle and recovers from a panic so the loop keeps going.
func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scan cycle panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	start := time.Now()
	stats := s.cycler.RunCycle(ctx)
	s.logger.Debug("scan cycle finished",
		"duration", time.Since(start).Round(time.Millisecond).String(),
		"created", stats.Created(),
	)
}
