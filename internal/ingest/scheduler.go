package ingest

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/curbdata/parking-aggregator/internal/config"
)

// Scheduler runs ingestion on a fixed interval until its context is
// cancelled.
type Scheduler struct {
	orchestrator *Orchestrator
	interval     time.Duration
	sources      []string
	logger       *slog.Logger
	ready        atomic.Bool
}

// NewScheduler creates a scheduler around an orchestrator. cfg.Sources
// restricts the scheduled runs; empty means every registered source.
func NewScheduler(orchestrator *Orchestrator, cfg config.IngestConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		interval:     cfg.Interval,
		sources:      cfg.Sources,
		logger:       logger,
	}
}

// CheckReadiness returns nil once at least one ingestion run has completed,
// or an error describing why the service is not yet ready.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no ingestion run has completed yet")
	}
	return nil
}

// Run ingests immediately, then again every interval until the context is
// cancelled. Failed runs are logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("ingestion scheduler started", "interval", s.interval, "sources", s.sources)

	for {
		report, err := s.orchestrator.Ingest(ctx, s.sources...)
		switch {
		case err != nil && ctx.Err() != nil:
			// Shutting down; the sleep below returns immediately.
		case err != nil:
			s.logger.Error("ingestion run failed", "error", err)
		default:
			s.ready.Store(true)
			s.logger.Info("next ingestion scheduled",
				"spots", report.FinalSpots,
				"failed_sources", len(report.Errors),
				"in", s.interval,
			)
		}

		if !sleepWithContext(ctx, s.nextDelay()) {
			s.logger.Info("ingestion scheduler stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// nextDelay adds up to 10% jitter so restarted replicas do not synchronize
// their runs against the source portals.
func (s *Scheduler) nextDelay() time.Duration {
	return s.interval + rand.N(s.interval/10+1)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
