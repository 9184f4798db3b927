package source

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/curbdata/parking-aggregator/internal/domain"
	"github.com/curbdata/parking-aggregator/internal/geo"
)

const (
	// citationConfidence is the baseline for spots inferred from citation
	// activity. Inference from enforcement data is weaker than any survey,
	// so inferred spots always need verification.
	citationConfidence = 0.80

	// citationClusterMeters is the grid cell size for grouping citations.
	// Repeat enforcement within one cell marks a real, legally parkable
	// space.
	citationClusterMeters = 15.0

	// minClusterSize is how many citations a cell needs before it is
	// evidence of a parking spot rather than a one-off stop.
	minClusterSize = 3
)

// Citations infers parking spots from parking citation records. A citation
// for an overstayed meter or an expired permit proves a vehicle was parked
// there, so clusters of such citations mark legal spaces. Citations for
// violations like hydrant blocking prove the opposite and are excluded.
type Citations struct {
	client  *OpenDataClient
	dataset string
	logger  *slog.Logger
}

// NewCitations creates the citation inference adapter.
func NewCitations(client *OpenDataClient, dataset string, logger *slog.Logger) *Citations {
	return &Citations{client: client, dataset: dataset, logger: logger}
}

// Name implements Adapter.
func (c *Citations) Name() string { return domain.SourceCitations }

// FetchAll implements Adapter.
func (c *Citations) FetchAll(ctx context.Context) ([]domain.CandidateSpot, int, error) {
	records, err := c.client.fetchDataset(ctx, c.dataset, nil)
	if err != nil {
		return nil, 0, err
	}

	clusters := make(map[string][]geo.Point)
	skipped := 0
	for _, raw := range records {
		var rec citationRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped++
			c.logger.Debug("skipping citation record", "error", err)
			continue
		}

		if illegalViolation(rec.ViolationDesc) {
			skipped++
			continue
		}

		lat := parseFloat(rec.Latitude)
		lon := parseFloat(rec.Longitude)
		if lat == 0 || lon == 0 {
			skipped++
			continue
		}

		p := geo.Point{Latitude: lat, Longitude: lon}
		key := geo.CellKey(p, citationCellDegrees())
		clusters[key] = append(clusters[key], p)
	}

	// Map iteration order is random; sort keys so repeated fetches of the
	// same data produce the same candidate order.
	keys := make([]string, 0, len(clusters))
	for key, points := range clusters {
		if len(points) >= minClusterSize {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	candidates := make([]domain.CandidateSpot, 0, len(keys))
	for _, key := range keys {
		points := clusters[key]
		centroid := meanPoint(points)
		candidates = append(candidates, domain.CandidateSpot{
			Latitude:          centroid.Latitude,
			Longitude:         centroid.Longitude,
			SpotType:          domain.SpotTypeStreet,
			Capacity:          1,
			PrimarySource:     domain.SourceCitations,
			SourceID:          "citations-" + key,
			Confidence:        citationConfidence,
			NeedsVerification: true,
		})
	}
	return candidates, skipped, nil
}

func citationCellDegrees() float64 {
	return citationClusterMeters / 111320.0
}

func meanPoint(points []geo.Point) geo.Point {
	var lat, lon float64
	for _, p := range points {
		lat += p.Latitude
		lon += p.Longitude
	}
	n := float64(len(points))
	return geo.Point{Latitude: lat / n, Longitude: lon / n}
}

// illegalViolationMarkers are substrings of violation descriptions that
// indicate the vehicle was NOT in a legal space. Citations matching any of
// these are useless for inferring parkable curb.
var illegalViolationMarkers = []string{
	"HYD",      // fire hydrant
	"RED ZONE", // no stopping curb
	"YELLOW ZONE",
	"WHITE ZONE",
	"DBL", // double parking
	"DRIVEWAY",
	"SIDEWALK",
	"CROSSWALK",
	"BUS ZONE",
	"FIRE LANE",
	"TOW",
}

func illegalViolation(desc string) bool {
	upper := strings.ToUpper(desc)
	for _, marker := range illegalViolationMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// Citation record. The portal serves coordinates as strings like every
// other numeric column.
type citationRecord struct {
	CitationNumber string `json:"citation_number"`
	ViolationDesc  string `json:"violation_desc"`
	Latitude       string `json:"latitude"`
	Longitude      string `json:"longitude"`
}
