// Command parkctl is the operator CLI for the parking aggregation service.
// It works directly against the configured spot store: one-shot ingestion
// runs, availability queries, live report and confirm flows, and store
// integrity audits.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/curbdata/parking-aggregator/internal/adapter/memstore"
	"github.com/curbdata/parking-aggregator/internal/adapter/sqlite"
	"github.com/curbdata/parking-aggregator/internal/config"
	"github.com/curbdata/parking-aggregator/internal/domain"
	"github.com/curbdata/parking-aggregator/internal/observability"
	"github.com/curbdata/parking-aggregator/internal/source"
)

var rootCmd = &cobra.Command{
	Use:   "parkctl",
	Short: "Operator CLI for the parking data aggregation service",
	Long: `parkctl runs the aggregation service's operations without the daemon:
one-shot ingestion, availability queries around a point, live user reports,
spot confirmations, and store integrity checks.

Settings come from parkingd.yaml and PARKD_-prefixed environment variables,
the same configuration parkingd reads. With the default in-memory store each
invocation starts empty; point store.driver at sqlite to operate on data a
parkingd instance maintains.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env holds the collaborators every subcommand wires the same way.
type env struct {
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *observability.Metrics
	store      domain.SpotStore
	closeStore func() error
}

func newEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.Log)

	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &env{
		cfg:        cfg,
		logger:     logger,
		metrics:    observability.NewMetrics(),
		store:      store,
		closeStore: closeStore,
	}, nil
}

func (e *env) close() {
	if err := e.closeStore(); err != nil {
		e.logger.Error("store close error", "error", err)
	}
}

func openStore(cfg config.StoreConfig) (domain.SpotStore, func() error, error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return memstore.New(), func() error { return nil }, nil
	}
}

// buildAdapters wires every source adapter, matching parkingd's wiring.
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

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
