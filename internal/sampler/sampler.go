// Package sampler keeps the queue-depth gauges fresh on a cron schedule.
package sampler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/serpflow/serpflow/internal/metrics"
	"github.com/serpflow/serpflow/internal/serp"
)

// Config controls the refresh schedule.
type Config struct {
	// Spec is a cron expression or descriptor such as "@every 30s".
	Spec string
}

// Sampler periodically counts queries per lifecycle status and publishes
// the counts as gauges. Counters track flow; the gauges are the only view
// of how deep the queue currently is.
type Sampler struct {
	cron    *cron.Cron
	queries serp.QueryStore
	spec    string
	logger  *zap.Logger
}

// New creates a Sampler. The default schedule samples every 30 seconds.
func New(queries serp.QueryStore, cfg Config, logger *zap.Logger) *Sampler {
	spec := cfg.Spec
	if spec == "" {
		spec = "@every 30s"
	}
	return &Sampler{
		cron:    cron.New(),
		queries: queries,
		spec:    spec,
		logger:  logger,
	}
}

// Start registers the refresh job and starts the scheduler. One sample
// runs immediately so the gauges are populated before the first tick.
func (s *Sampler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		s.Sample(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid sampler spec %q: %w", s.spec, err)
	}
	s.Sample(ctx)
	s.cron.Start()
	s.logger.Info("queue sampler started", zap.String("spec", s.spec))
	return nil
}

// Stop halts the scheduler and waits for an in-flight sample to finish.
func (s *Sampler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("queue sampler stopped")
}

// Sample reads the current status counts and updates the gauges.
func (s *Sampler) Sample(ctx context.Context) {
	counts, err := s.queries.CountByStatus(ctx)
	if err != nil {
		s.logger.Warn("queue depth sample failed", zap.Error(err))
		return
	}
	metrics.SetQueueDepth(string(serp.QueryStatusPending), counts.Pending)
	metrics.SetQueueDepth(string(serp.QueryStatusProcessing), counts.Processing)
	metrics.SetQueueDepth(string(serp.QueryStatusCompleted), counts.Completed)
	s.logger.Debug("queue depth sampled",
		zap.Int("pending", counts.Pending),
		zap.Int("processing", counts.Processing),
		zap.Int("completed", counts.Completed),
	)
}
