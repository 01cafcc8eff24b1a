package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/seqimprove/seqimprove-go/pkg/metrics"
)

// Pruner deletes finished runs older than a cutoff
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service periodically prunes the annotation run history
type Service struct {
	pruner    Pruner
	cron      *cron.Cron
	schedule  cron.Schedule
	spec      string
	retention time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewService validates the cron expression and retention window. A
// retention of zero or less keeps runs forever and schedules nothing.
func NewService(pruner Pruner, spec string, retention time.Duration, m *metrics.Metrics, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		pruner:    pruner,
		cron:      cron.New(),
		spec:      spec,
		retention: retention,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
	if retention <= 0 {
		return s, nil
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	s.schedule = schedule
	return s, nil
}

// Start schedules the prune job and starts the cron runner
func (s *Service) Start() {
	if s.schedule == nil {
		s.logger.Info("run pruning disabled")
		return
	}

	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		s.Prune(context.Background())
	}))
	s.cron.Start()
	s.logger.Info("run pruning scheduled", "schedule", s.spec, "retention", s.retention, "next_run", s.NextRun())
}

// Stop stops the cron runner and waits for a running prune to finish
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("run pruning stopped")
}

// NextRun returns the next scheduled prune, or the zero time when
// pruning is disabled
func (s *Service) NextRun() time.Time {
	if s.schedule == nil {
		return time.Time{}
	}
	return s.schedule.Next(s.now())
}

// Prune deletes finished runs older than the retention window
func (s *Service) Prune(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}

	cutoff := s.now().Add(-s.retention)
	deleted, err := s.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to prune runs", "cutoff", cutoff, "error", err)
		return 0, err
	}

	s.metrics.RecordRunsPruned(deleted)
	if deleted > 0 {
		s.logger.Info("pruned annotation runs", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}
