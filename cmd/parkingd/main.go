// Command parkingd runs the parking data aggregation service: scheduled
// ingestion from the configured sources plus the operational HTTP
// endpoints. Domain operations (availability queries, user reports) are
// served by parkctl against the same store.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/curbdata/parking-aggregator/internal/adapter/http"
	"github.com/curbdata/parking-aggregator/internal/adapter/memstore"
	"github.com/curbdata/parking-aggregator/internal/adapter/sqlite"
	"github.com/curbdata/parking-aggregator/internal/config"
	"github.com/curbdata/parking-aggregator/internal/dedup"
	"github.com/curbdata/parking-aggregator/internal/domain"
	"github.com/curbdata/parking-aggregator/internal/ingest"
	"github.com/curbdata/parking-aggregator/internal/observability"
	"github.com/curbdata/parking-aggregator/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Log)
	metrics := observability.NewMetrics()

	store, closeStore, err := openStore(cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	strategy, err := dedup.New(cfg.Dedup.Strategy, cfg.Dedup.ThresholdMeters)
	if err != nil {
		logger.Error("failed to build dedup strategy", "error", err)
		os.Exit(1)
	}

	orchestrator := ingest.NewOrchestrator(buildAdapters(cfg, logger), strategy, store, logger, metrics, cfg.Ingest)
	scheduler := ingest.NewScheduler(orchestrator, cfg.Ingest, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, scheduler, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start ops HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the ingestion scheduler.
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := closeStore(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// buildAdapters wires every source adapter. Adapters missing credentials
// stay registered; the orchestrator skips them with a warning when they
// report ErrConfigMissing.
func buildAdapters(cfg *config.Config, logger *slog.Logger) []source.Adapter {
	client := source.NewOpenDataClient(cfg.Sources.OpenData, logger)
	return []source.Adapter{
		source.NewMeters(client, cfg.Sources.OpenData.MetersDataset, logger),
		source.NewCensus(client, cfg.Sources.OpenData.CensusDataset, logger),
		source.NewCitations(client, cfg.Sources.OpenData.CitationsDataset, logger),
		source.NewPlaces(cfg.Sources.Places, logger),
		source.NewCommunity(cfg.Sources.Community, logger),
	}
}

func openStore(cfg config.StoreConfig, logger *slog.Logger) (domain.SpotStore, func() error, error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("sqlite store opened", "path", cfg.Path)
		return store, store.Close, nil
	default:
		logger.Info("using in-memory store")
		return memstore.New(), func() error { return nil }, nil
	}
}
