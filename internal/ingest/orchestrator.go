// Package ingest coordinates the fetch-dedup-persist cycle across all
// configured sources.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/curbdata/parking-aggregator/internal/config"
	"github.com/curbdata/parking-aggregator/internal/dedup"
	"github.com/curbdata/parking-aggregator/internal/domain"
	"github.com/curbdata/parking-aggregator/internal/observability"
	"github.com/curbdata/parking-aggregator/internal/source"
)

// Report summarizes one ingestion run.
type Report struct {
	// PerSourceCounts is the number of candidates each successful source
	// produced.
	PerSourceCounts map[string]int

	// SkippedRecords counts records each source dropped as unusable.
	SkippedRecords map[string]int

	// DuplicatesRemoved is how many candidates merged away during dedup.
	DuplicatesRemoved int

	// FinalSpots is the number of spots persisted, counting batches the
	// store reported as already present.
	FinalSpots int

	// Errors holds the failure per source that produced one, plus a
	// "store" entry when persistence batches failed.
	Errors map[string]error
}

// Orchestrator runs the fetch-dedup-persist cycle. Sources fail
// independently; one adapter's error never aborts a run.
type Orchestrator struct {
	adapters map[string]source.Adapter
	order    []string
	strategy dedup.Strategy
	store    domain.SpotStore
	logger   *slog.Logger
	metrics  *observability.Metrics

	batchSize   int
	concurrency int
}

// NewOrchestrator creates an orchestrator over the given adapters. The
// adapter order fixes the default run order.
func NewOrchestrator(
	adapters []source.Adapter,
	strategy dedup.Strategy,
	store domain.SpotStore,
	logger *slog.Logger,
	metrics *observability.Metrics,
	cfg config.IngestConfig,
) *Orchestrator {
	byName := make(map[string]source.Adapter, len(adapters))
	order := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		byName[adapter.Name()] = adapter
		order = append(order, adapter.Name())
	}
	return &Orchestrator{
		adapters:    byName,
		order:       order,
		strategy:    strategy,
		store:       store,
		logger:      logger,
		metrics:     metrics,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
	}
}

// Ingest runs the named sources (all registered sources when none are
// named), deduplicates their combined candidates, and persists the result
// in bounded batches. Per-source and per-batch failures are recorded in the
// report; the returned error is non-nil only for unknown source names or a
// cancelled context.
func (o *Orchestrator) Ingest(ctx context.Context, sourceNames ...string) (*Report, error) {
	selected, err := o.selectAdapters(sourceNames)
	if err != nil {
		return nil, err
	}

	o.metrics.IngestRunning.Set(1)
	defer o.metrics.IngestRunning.Set(0)
	start := time.Now()

	report := &Report{
		PerSourceCounts: make(map[string]int),
		SkippedRecords:  make(map[string]int),
		Errors:          make(map[string]error),
	}

	var (
		mu      sync.Mutex
		results = make(map[string][]domain.CandidateSpot, len(selected))
	)
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for _, adapter := range selected {
		g.Go(func() error {
			fetched, skipped, err := o.fetchSource(ctx, adapter)

			mu.Lock()
			defer mu.Unlock()
			name := adapter.Name()
			switch {
			case errors.Is(err, domain.ErrConfigMissing):
				o.logger.Warn("source not configured, skipping", "source", name)
			case err != nil:
				report.Errors[name] = err
			default:
				report.PerSourceCounts[name] = len(fetched)
				if skipped > 0 {
					report.SkippedRecords[name] = skipped
				}
				results[name] = fetched
			}
			return nil
		})
	}
	// The barrier guarantees dedup sees every source's evidence for a
	// location at once; merging incrementally per source would miss
	// cross-source duplicates.
	_ = g.Wait()

	// Concatenate in selection order so dedup's first-seen tiebreaks do
	// not depend on which source finished first.
	var candidates []domain.CandidateSpot
	for _, adapter := range selected {
		candidates = append(candidates, results[adapter.Name()]...)
	}

	merged := o.strategy.Dedupe(candidates)
	report.DuplicatesRemoved = len(candidates) - len(merged)
	o.metrics.DuplicatesRemoved.Add(float64(report.DuplicatesRemoved))
	o.logger.Info("deduplicated candidates",
		"strategy", o.strategy.Name(),
		"candidates", len(candidates),
		"spots", len(merged),
		"removed", report.DuplicatesRemoved,
	)

	if err := o.persist(ctx, toSpots(merged), report); err != nil {
		return report, err
	}

	o.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	o.logger.Info("ingestion run finished",
		"spots", report.FinalSpots,
		"duplicates_removed", report.DuplicatesRemoved,
		"failed_sources", len(report.Errors),
		"elapsed", time.Since(start),
	)
	return report, nil
}

func (o *Orchestrator) selectAdapters(names []string) ([]source.Adapter, error) {
	if len(names) == 0 {
		names = o.order
	}
	selected := make([]source.Adapter, 0, len(names))
	for _, name := range names {
		adapter, ok := o.adapters[name]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		selected = append(selected, adapter)
	}
	return selected, nil
}

func (o *Orchestrator) fetchSource(ctx context.Context, adapter source.Adapter) ([]domain.CandidateSpot, int, error) {
	name := adapter.Name()
	start := time.Now()
	candidates, skipped, err := adapter.FetchAll(ctx)
	elapsed := time.Since(start)
	o.metrics.SourceFetchTime.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		if !errors.Is(err, domain.ErrConfigMissing) {
			o.logger.Error("source fetch failed", "source", name, "error", err, "elapsed", elapsed)
			o.metrics.SourceErrors.WithLabelValues(name).Inc()
		}
		return nil, 0, err
	}

	o.logger.Info("source fetched",
		"source", name,
		"candidates", len(candidates),
		"skipped", skipped,
		"elapsed", elapsed,
	)
	o.metrics.SourceCandidates.WithLabelValues(name).Add(float64(len(candidates)))
	o.metrics.SourceSkipped.WithLabelValues(name).Add(float64(skipped))
	return candidates, skipped, nil
}

// persist writes spots in batches. A failed batch is recorded and skipped;
// batches already written stay written. Only context cancellation stops the
// loop early.
func (o *Orchestrator) persist(ctx context.Context, spots []domain.ParkingSpot, report *Report) error {
	for begin := 0; begin < len(spots); begin += o.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(begin+o.batchSize, len(spots))
		batch := spots[begin:end]

		err := o.store.UpsertSpots(ctx, batch)
		switch {
		case errors.Is(err, domain.ErrDuplicateWrite):
			// The spots are already present; the write is idempotent.
			o.logger.Debug("batch contained existing spots", "from", begin, "to", end)
			report.FinalSpots += len(batch)
		case err != nil:
			o.logger.Error("batch write failed", "from", begin, "to", end, "error", err)
			o.metrics.BatchWriteErrors.Inc()
			report.Errors["store"] = errors.Join(report.Errors["store"],
				fmt.Errorf("batch %d-%d: %w", begin, end, err))
		default:
			report.FinalSpots += len(batch)
			o.metrics.SpotsUpserted.Add(float64(len(batch)))
		}
	}
	return nil
}

// toSpots assigns deterministic IDs to merged candidates. LastStatusUpdate
// stays zero until a live report arrives; the availability reader relies on
// that to split static inventory from live-reported spots.
func toSpots(candidates []domain.CandidateSpot) []domain.ParkingSpot {
	spots := make([]domain.ParkingSpot, len(candidates))
	for i, c := range candidates {
		spots[i] = domain.ParkingSpot{
			CandidateSpot: c,
			ID:            domain.NewSpotID(c.SpotType, c.Latitude, c.Longitude),
		}
	}
	return spots
}
