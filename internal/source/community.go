package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/curbdata/parking-aggregator/internal/config"
	"github.com/curbdata/parking-aggregator/internal/domain"
)

const (
	// communityBaseConfidence is the floor for crowd-mapped elements.
	// Volunteer data quality varies widely, so the baseline is the lowest
	// of any source family.
	communityBaseConfidence = 0.70

	// completenessBonus is the confidence added for a fully tagged element.
	// A completeness of 100 raises confidence to 0.85; nothing raises it
	// further.
	completenessBonus = 0.15

	communityMaxConfidence = 0.85

	// verifyBelowCompleteness marks sparsely tagged elements for field
	// verification.
	verifyBelowCompleteness = 50
)

// Community ingests crowd-mapped parking elements. Each element carries
// free-form tags and a completeness score the service computes from how
// many expected tags are present.
type Community struct {
	apiClient
	baseURL  string
	pageSize int
	logger   *slog.Logger
}

// NewCommunity creates the community geodata adapter.
func NewCommunity(cfg config.CommunityConfig, logger *slog.Logger) *Community {
	return &Community{
		apiClient: newAPIClient(cfg.RequestTimeout, cfg.PageInterval, cfg.MaxRetries),
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		pageSize:  cfg.PageSize,
		logger:    logger,
	}
}

// Name implements Adapter.
func (c *Community) Name() string { return domain.SourceCommunity }

// FetchAll implements Adapter.
func (c *Community) FetchAll(ctx context.Context) ([]domain.CandidateSpot, int, error) {
	if c.baseURL == "" {
		return nil, 0, fmt.Errorf("community base url: %w", domain.ErrConfigMissing)
	}

	var candidates []domain.CandidateSpot
	skipped := 0
	offset := 0
	for {
		q := url.Values{}
		q.Set("category", "parking")
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("offset", strconv.Itoa(offset))

		var page communityResponse
		if err := c.getJSON(ctx, c.baseURL+"/elements?"+q.Encode(), nil, &page); err != nil {
			return nil, 0, fmt.Errorf("community offset %d: %w", offset, err)
		}
		if len(page.Elements) == 0 {
			return candidates, skipped, nil
		}

		for _, rec := range page.Elements {
			candidate, ok := normalizeCommunity(rec)
			if !ok {
				skipped++
				continue
			}
			candidates = append(candidates, candidate)
		}
		c.logger.Debug("fetched community page", "offset", offset, "records", len(page.Elements))
		offset += len(page.Elements)
	}
}

func normalizeCommunity(rec communityElement) (domain.CandidateSpot, bool) {
	if rec.ID == 0 || rec.Lat == 0 || rec.Lon == 0 {
		return domain.CandidateSpot{}, false
	}

	confidence := communityBaseConfidence + float64(rec.Completeness)/100*completenessBonus
	if confidence > communityMaxConfidence {
		confidence = communityMaxConfidence
	}

	candidate := domain.CandidateSpot{
		Latitude:          rec.Lat,
		Longitude:         rec.Lon,
		Address:           rec.Tags["name"],
		SpotType:          communitySpotType(rec.Tags),
		Capacity:          parseInt(rec.Tags["capacity"]),
		PrimarySource:     domain.SourceCommunity,
		SourceID:          "community-" + strconv.FormatInt(rec.ID, 10),
		Confidence:        confidence,
		NeedsVerification: rec.Completeness < verifyBelowCompleteness,
	}
	if err := candidate.Validate(); err != nil {
		return domain.CandidateSpot{}, false
	}
	return candidate, true
}

func communitySpotType(tags map[string]string) domain.SpotType {
	switch tags["parking"] {
	case "multi-storey", "underground", "rooftop":
		return domain.SpotTypeGarage
	case "street_side", "lane", "on_street":
		return domain.SpotTypeStreet
	default:
		return domain.SpotTypeLot
	}
}

// Crowd-mapped element. Tags follow the service's parking schema; the
// completeness score is 0-100.
type communityElement struct {
	ID           int64             `json:"id"`
	Lat          float64           `json:"lat"`
	Lon          float64           `json:"lon"`
	Tags         map[string]string `json:"tags"`
	Completeness int               `json:"completeness"`
}

type communityResponse struct {
	Elements []communityElement `json:"elements"`
}
