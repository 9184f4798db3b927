package main

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/curbdata/parking-aggregator/internal/availability"
	"github.com/curbdata/parking-aggregator/internal/cache"
	"github.com/curbdata/parking-aggregator/internal/source"
)

var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Query aggregated parking availability around a point",
	Long: `Availability combines live user reports, ingested government data,
nearby garages and lots from the places API, and a time-of-day estimate
into one ranked answer. Collaborators that fail leave their category
empty instead of failing the query.`,
	RunE: runAvailability,
}

func init() {
	availabilityCmd.Flags().Float64("lat", 0, "query latitude")
	availabilityCmd.Flags().Float64("lon", 0, "query longitude")
	availabilityCmd.Flags().Float64("radius", 0, "search radius in meters (default: configured)")
	availabilityCmd.Flags().Bool("json", false, "print the full result as JSON")
	_ = availabilityCmd.MarkFlagRequired("lat")
	_ = availabilityCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(availabilityCmd)
}

func runAvailability(cmd *cobra.Command, _ []string) error {
	lat, _ := cmd.Flags().GetFloat64("lat")
	lon, _ := cmd.Flags().GetFloat64("lon")
	radius, _ := cmd.Flags().GetFloat64("radius")
	asJSON, _ := cmd.Flags().GetBool("json")

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	clock := clockwork.NewRealClock()
	places := source.NewPlaces(e.cfg.Sources.Places, e.logger)
	searcher := source.NewCachedSearcher(places, cache.New(e.cfg.Availability.CacheTTL, clock), e.metrics)
	aggregator := availability.NewAggregator(e.store, searcher, clock, e.logger, e.metrics, e.cfg.Availability)

	result, err := aggregator.Availability(cmd.Context(), lat, lon, radius)
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(result)
	}

	fmt.Printf("live reports: %d   static spots: %d   garages/lots: %d\n",
		len(result.LiveReports), len(result.StaticSpots), len(result.Places))
	fmt.Printf("available now: %d   confidence: %.2f\n\n",
		result.Summary.TotalAvailableSpots, result.Summary.ConfidenceScore)
	for _, rec := range result.Summary.Recommendations {
		fmt.Printf("  - %s\n", rec)
	}
	return nil
}
