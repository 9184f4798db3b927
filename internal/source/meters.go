package source

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/curbdata/parking-aggregator/internal/domain"
)

// meterConfidence is the baseline for surveyed meter hardware, the most
// precise source in the system.
const meterConfidence = 0.98

// Meters ingests the city parking meter inventory.
type Meters struct {
	client  *OpenDataClient
	dataset string
	logger  *slog.Logger
}

// NewMeters creates the meter inventory adapter.
func NewMeters(client *OpenDataClient, dataset string, logger *slog.Logger) *Meters {
	return &Meters{client: client, dataset: dataset, logger: logger}
}

// Name implements Adapter.
func (m *Meters) Name() string { return domain.SourceMeters }

// FetchAll implements Adapter.
func (m *Meters) FetchAll(ctx context.Context) ([]domain.CandidateSpot, int, error) {
	records, err := m.client.fetchDataset(ctx, m.dataset, nil)
	if err != nil {
		return nil, 0, err
	}

	candidates := make([]domain.CandidateSpot, 0, len(records))
	skipped := 0
	for _, raw := range records {
		var rec meterRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped++
			m.logger.Debug("skipping meter record", "error", err)
			continue
		}

		candidate, ok := normalizeMeter(rec)
		if !ok {
			skipped++
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, skipped, nil
}

// normalizeMeter converts a raw meter record into a candidate. Records
// without usable coordinates produce nothing.
func normalizeMeter(rec meterRecord) (domain.CandidateSpot, bool) {
	lat := parseFloat(rec.Latitude)
	lon := parseFloat(rec.Longitude)
	if lat == 0 || lon == 0 {
		return domain.CandidateSpot{}, false
	}

	candidate := domain.CandidateSpot{
		Latitude:      lat,
		Longitude:     lon,
		Address:       rec.StreetAddress,
		SpotType:      meterSpotType(rec.CapColor),
		Capacity:      meterCapacity(rec),
		PrimarySource: domain.SourceMeters,
		SourceID:      "meter-" + rec.PostID,
		Confidence:    meterConfidence,
		Regulations: domain.Regulations{
			Metered:          true,
			TimeLimitMinutes: parseInt(rec.TimeLimit),
			HourlyRate:       parseFloat(rec.HourlyRate),
			Hours:            rec.HoursOfOperation,
			CurbColor:        rec.CapColor,
		},
	}
	if err := candidate.Validate(); err != nil {
		return domain.CandidateSpot{}, false
	}
	return candidate, true
}

// meterSpotType maps the city's cap color scheme to a spot type: blue caps
// mark accessible spaces, black caps mark motorcycle spaces.
func meterSpotType(capColor string) domain.SpotType {
	switch capColor {
	case "Blue", "blue":
		return domain.SpotTypeHandicap
	case "Black", "black":
		return domain.SpotTypeMotorcycle
	default:
		return domain.SpotTypeMetered
	}
}

// meterCapacity is 1 for single-space meters; multi-space pay stations
// report the spaces they cover.
func meterCapacity(rec meterRecord) int {
	if rec.MeterType == "MS" {
		if n := parseInt(rec.Spaces); n > 1 {
			return n
		}
	}
	return 1
}

// Meter inventory record as served by the portal. Numeric columns arrive
// as strings.
type meterRecord struct {
	PostID           string `json:"post_id"`
	StreetAddress    string `json:"street_address"`
	Latitude         string `json:"latitude"`
	Longitude        string `json:"longitude"`
	MeterType        string `json:"meter_type"` // SS single-space, MS multi-space
	Spaces           string `json:"spaces"`
	CapColor         string `json:"cap_color"`
	TimeLimit        string `json:"time_limit"` // minutes
	HourlyRate       string `json:"hourly_rate"`
	HoursOfOperation string `json:"hours_of_operation"`
}
