package source

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/curbdata/parking-aggregator/internal/domain"
)

// censusConfidence is the baseline for the on-street supply census, a
// professional survey with block-level rather than space-level precision.
const censusConfidence = 0.95

// Census ingests the on-street parking supply census.
type Census struct {
	client  *OpenDataClient
	dataset string
	logger  *slog.Logger
}

// NewCensus creates the parking census adapter.
func NewCensus(client *OpenDataClient, dataset string, logger *slog.Logger) *Census {
	return &Census{client: client, dataset: dataset, logger: logger}
}

// Name implements Adapter.
func (c *Census) Name() string { return domain.SourceCensus }

// FetchAll implements Adapter.
func (c *Census) FetchAll(ctx context.Context) ([]domain.CandidateSpot, int, error) {
	records, err := c.client.fetchDataset(ctx, c.dataset, nil)
	if err != nil {
		return nil, 0, err
	}

	candidates := make([]domain.CandidateSpot, 0, len(records))
	skipped := 0
	for _, raw := range records {
		var rec censusRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped++
			c.logger.Debug("skipping census record", "error", err)
			continue
		}

		candidate, ok := normalizeCensus(rec)
		if !ok {
			skipped++
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, skipped, nil
}

// normalizeCensus converts a census segment into a candidate. Segments with
// no reported supply describe curb where parking is prohibited, so they are
// dropped rather than emitted with capacity zero.
func normalizeCensus(rec censusRecord) (domain.CandidateSpot, bool) {
	lat := parseFloat(rec.Latitude)
	lon := parseFloat(rec.Longitude)
	if lat == 0 || lon == 0 {
		return domain.CandidateSpot{}, false
	}

	capacity := parseInt(rec.ParkingSupply)
	if capacity <= 0 {
		return domain.CandidateSpot{}, false
	}

	address := rec.StreetName
	if rec.Side != "" {
		address = rec.StreetName + " (" + rec.Side + " side)"
	}

	candidate := domain.CandidateSpot{
		Latitude:      lat,
		Longitude:     lon,
		Address:       address,
		SpotType:      domain.SpotTypeStreet,
		Capacity:      capacity,
		PrimarySource: domain.SourceCensus,
		SourceID:      "census-" + rec.ObjectID,
		Confidence:    censusConfidence,
	}
	if err := candidate.Validate(); err != nil {
		return domain.CandidateSpot{}, false
	}
	return candidate, true
}

// Census segment record. One row per block face with its counted supply.
type censusRecord struct {
	ObjectID      string `json:"objectid"`
	StreetName    string `json:"street_name"`
	Side          string `json:"side"`
	ParkingSupply string `json:"prkg_sply"`
	Latitude      string `json:"lat"`
	Longitude     string `json:"lon"`
}
