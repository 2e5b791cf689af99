package tasks

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatsync/internal/bus"
	"github.com/desertthunder/beatsync/internal/shared"
)

// Scheduler emits cycle.scheduled on a fixed interval. The first tick fires
// immediately so a freshly started daemon syncs without waiting out the
// interval.
type Scheduler struct {
	interval  time.Duration
	publisher message.Publisher
	logger    *log.Logger
}

// NewScheduler creates a scheduler for the configured rate.
func NewScheduler(interval time.Duration, publisher message.Publisher, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Scheduler{interval: interval, publisher: publisher, logger: logger}
}

// Run blocks, publishing a cycle trigger now and on every interval tick,
// until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	if err := s.Trigger(); err != nil {
		s.logger.Error("failed to publish cycle trigger", "err", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Trigger(); err != nil {
				s.logger.Error("failed to publish cycle trigger", "err", err)
			}
		}
	}
}

// Trigger publishes a single cycle.scheduled message.
func (s *Scheduler) Trigger() error {
	return s.publisher.Publish(bus.TopicCycleScheduled, bus.NewMessage(nil))
}
