package reconcile

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler runs the expiry sweep on a fixed interval. The full audit is not
// on a schedule: it runs at startup and on administrative demand.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler builds a sweep scheduler; interval is normally 24h.
func NewScheduler(engine *Engine, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{engine: engine, interval: interval, logger: logger}
}

// Run blocks until the context is cancelled, sweeping once per interval.
// Sweep failures are logged; the loop keeps going.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report, err := s.engine.ExpirySweep(ctx)
			if err != nil {
				s.logger.Error("scheduled expiry sweep failed", "error", err)
				continue
			}
			s.logger.Info("scheduled expiry sweep complete",
				"expired", report.Audited,
				"failed", report.Failed,
			)
		}
	}
}
