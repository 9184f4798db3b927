package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/curbdata/parking-aggregator/internal/config"
	"github.com/curbdata/parking-aggregator/internal/domain"
)

// placesConfidence is the baseline for the commercial places-search API.
// Listings are business-maintained, so slightly less reliable than a
// professional survey.
const placesConfidence = 0.85

// Places queries the commercial places-search API for parking lots and
// garages. It serves two roles: bulk ingestion through FetchAll, and live
// point lookups through SearchNearby for availability queries.
type Places struct {
	apiClient
	baseURL  string
	apiKey   string
	pageSize int
	logger   *slog.Logger
}

// NewPlaces creates the places-search adapter.
func NewPlaces(cfg config.PlacesConfig, logger *slog.Logger) *Places {
	return &Places{
		apiClient: newAPIClient(cfg.RequestTimeout, cfg.PageInterval, cfg.MaxRetries),
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		pageSize:  cfg.PageSize,
		logger:    logger,
	}
}

// Name implements Adapter.
func (p *Places) Name() string { return domain.SourcePlaces }

// FetchAll implements Adapter.
func (p *Places) FetchAll(ctx context.Context) ([]domain.CandidateSpot, int, error) {
	if p.apiKey == "" {
		return nil, 0, fmt.Errorf("places api key: %w", domain.ErrConfigMissing)
	}

	var candidates []domain.CandidateSpot
	skipped := 0
	offset := 0
	for {
		q := url.Values{}
		q.Set("query", "parking")
		q.Set("limit", strconv.Itoa(p.pageSize))
		q.Set("offset", strconv.Itoa(offset))

		var page placesResponse
		if err := p.getJSON(ctx, p.baseURL+"/v1/search?"+q.Encode(), p.authHeader(), &page); err != nil {
			return nil, 0, fmt.Errorf("places offset %d: %w", offset, err)
		}
		if len(page.Results) == 0 {
			return candidates, skipped, nil
		}

		for _, rec := range page.Results {
			candidate, ok := normalizePlace(rec)
			if !ok {
				skipped++
				continue
			}
			candidates = append(candidates, candidate)
		}
		p.logger.Debug("fetched places page", "offset", offset, "records", len(page.Results))
		offset += len(page.Results)
	}
}

// SearchNearby implements domain.PlaceSearcher with a single live query.
func (p *Places) SearchNearby(ctx context.Context, lat, lon, radiusMeters float64) ([]domain.CandidateSpot, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("places api key: %w", domain.ErrConfigMissing)
	}

	q := url.Values{}
	q.Set("query", "parking")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(int(radiusMeters)))

	var resp placesResponse
	if err := p.getJSON(ctx, p.baseURL+"/v1/nearby?"+q.Encode(), p.authHeader(), &resp); err != nil {
		return nil, fmt.Errorf("places nearby: %w", err)
	}

	candidates := make([]domain.CandidateSpot, 0, len(resp.Results))
	for _, rec := range resp.Results {
		if candidate, ok := normalizePlace(rec); ok {
			candidates = append(candidates, candidate)
		}
	}
	return candidates, nil
}

func (p *Places) authHeader() http.Header {
	return http.Header{"Authorization": {"Bearer " + p.apiKey}}
}

func normalizePlace(rec placeRecord) (domain.CandidateSpot, bool) {
	if rec.Location.Lat == 0 || rec.Location.Lng == 0 {
		return domain.CandidateSpot{}, false
	}

	address := rec.Address
	if address == "" {
		address = rec.Name
	}

	candidate := domain.CandidateSpot{
		Latitude:      rec.Location.Lat,
		Longitude:     rec.Location.Lng,
		Address:       address,
		SpotType:      placeSpotType(rec.Category),
		Capacity:      rec.Capacity,
		PrimarySource: domain.SourcePlaces,
		SourceID:      "place-" + rec.PlaceID,
		Confidence:    placesConfidence,
	}
	if err := candidate.Validate(); err != nil {
		return domain.CandidateSpot{}, false
	}
	return candidate, true
}

func placeSpotType(category string) domain.SpotType {
	if category == "parking_lot" {
		return domain.SpotTypeLot
	}
	return domain.SpotTypeGarage
}

// Place result as served by the search API.
type placeRecord struct {
	PlaceID  string        `json:"place_id"`
	Name     string        `json:"name"`
	Category string        `json:"category"`
	Address  string        `json:"address"`
	Location placeLocation `json:"location"`
	Capacity int           `json:"capacity"`
}

type placeLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type placesResponse struct {
	Results []placeRecord `json:"results"`
}
