// Package scheduler wires up the cron job that periodically runs the drift
// cycle.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jobtide/jobtide/internal/drift"
	"github.com/jobtide/jobtide/internal/logger"
)

// Scheduler wraps robfig/cron around the drift engine.
type Scheduler struct {
	cron   *cron.Cron
	engine *drift.Engine
	logger *zap.Logger
	spec   string
}

// New creates a Scheduler that fires every intervalHours hours.
func New(engine *drift.Engine, intervalHours int, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		engine: engine,
		logger: logger.WithComponent(log, "scheduler"),
		spec:   fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the job and starts the scheduler. One cycle runs
// immediately so alerts do not wait for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("drift scheduler started", zap.String("spec", s.spec))

	go s.runCycle(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("drift scheduler stopped")
}

func (s *Scheduler) runCycle(ctx context.Context) {
	report, err := s.engine.RunCycle(ctx)
	if err != nil {
		s.logger.Error("drift cycle failed", zap.Error(err))
		return
	}

	for _, ar := range report.Archetypes {
		s.logger.Info("drift cycle archetype done",
			zap.String("archetype", string(ar.Archetype)),
			zap.Bool("centroid_written", ar.CentroidWritten),
			zap.String("skip_reason", ar.SkipReason),
			zap.Float64("shift", ar.Shift),
			zap.Strings("alerts_opened", ar.AlertsOpened),
		)
	}
}
