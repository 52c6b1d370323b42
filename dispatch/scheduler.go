package dispatch

import (
	"context"
	"time"
)

// TriggerFunc is the work a Scheduler fires on each tick, typically
// constructing a new request envelope and submitting it to the transport.
type TriggerFunc func(ctx context.Context) error

// Scheduler invokes a trigger at a fixed interval. It only decides when
// new work starts; it knows nothing about envelopes or the transport.
// Trigger errors are logged and do not stop the loop.
type Scheduler struct {
	interval time.Duration
	trigger  TriggerFunc
	logger   Logger
}

// NewScheduler creates a Scheduler. A nil logger discards logs.
func NewScheduler(interval time.Duration, trigger TriggerFunc, logger Logger) *Scheduler {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Scheduler{interval: interval, trigger: trigger, logger: logger}
}

// Run ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler_started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler_stopped")
			return nil
		case <-ticker.C:
			if err := s.trigger(ctx); err != nil {
				s.logger.Warn("trigger_failed", "error", err)
			}
		}
	}
}
