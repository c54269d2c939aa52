package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/storechat/admin-agent/internal/infra/config"
)

// Sweeper expires overdue pending actions on a schedule.
type Sweeper struct {
	queue    *Queue
	interval time.Duration
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewSweeper creates an expiry sweeper.
func NewSweeper(queue *Queue, cfg config.QueueConfig, logger *slog.Logger) *Sweeper {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		queue:    queue,
		interval: interval,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start schedules the sweep and runs one immediately, so a restart
// catches actions that went overdue while the process was down.
func (s *Sweeper) Start(ctx context.Context) error {
	s.sweep(ctx)

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("sweeper: schedule: %w", err)
	}
	s.cron.Start()
	s.logger.Info("expiry sweeper started", "interval", s.interval)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.queue.ExpireSweep(ctx); err != nil {
		s.logger.Error("expiry sweep failed", "error", err)
	}
}
