// Package availability answers point-radius queries by fanning out to the
// spot store and the live places search, then summarizing the combined
// evidence with a freshness-weighted confidence score.
package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/curbdata/parking-aggregator/internal/config"
	"github.com/curbdata/parking-aggregator/internal/domain"
	"github.com/curbdata/parking-aggregator/internal/geo"
	"github.com/curbdata/parking-aggregator/internal/observability"
)

// Aggregator serves availability queries. Every collaborator is
// best-effort: a failed lookup empties its category and lowers the
// confidence score instead of failing the query.
type Aggregator struct {
	store   domain.SpotStore
	places  domain.PlaceSearcher
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	defaultRadius float64
}

// NewAggregator creates an availability aggregator.
func NewAggregator(
	store domain.SpotStore,
	places domain.PlaceSearcher,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
	cfg config.AvailabilityConfig,
) *Aggregator {
	return &Aggregator{
		store:         store,
		places:        places,
		clock:         clock,
		logger:        logger,
		metrics:       metrics,
		defaultRadius: cfg.DefaultRadiusMeters,
	}
}

// Availability reports live, static, and facility parking around a point.
// radiusMeters <= 0 selects the configured default radius.
func (a *Aggregator) Availability(ctx context.Context, lat, lon, radiusMeters float64) (*domain.AvailabilityResult, error) {
	origin := geo.Point{Latitude: lat, Longitude: lon}
	if err := origin.Validate(); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		radiusMeters = a.defaultRadius
	}

	a.metrics.AvailabilityQueries.Inc()
	start := time.Now()
	now := a.clock.Now()

	var (
		live   []domain.ReportedSpot
		static []domain.StaticSpot
		nearby []domain.NearbyPlace
	)
	var g errgroup.Group
	g.Go(func() error {
		live, static = a.storedSpots(ctx, origin, radiusMeters, now)
		return nil
	})
	g.Go(func() error {
		nearby = a.nearbyPlaces(ctx, origin, radiusMeters)
		return nil
	})
	_ = g.Wait()

	result := &domain.AvailabilityResult{
		Query: domain.AvailabilityQuery{
			Latitude:     lat,
			Longitude:    lon,
			RadiusMeters: radiusMeters,
		},
		LiveReports: live,
		StaticSpots: static,
		Places:      nearby,
		Prediction:  Predict(now),
		GeneratedAt: now.UTC(),
	}
	result.Summary = summarize(result)

	a.metrics.AvailabilityDuration.Observe(time.Since(start).Seconds())
	a.logger.Debug("availability query served",
		"live", len(live),
		"static", len(static),
		"places", len(nearby),
		"confidence", result.Summary.ConfidenceScore,
	)
	return result, nil
}

// storedSpots splits the stored inventory around origin into live-reported
// spots (confidence decayed by report age) and static bulk data, each
// sorted nearest first. Spots that have never received a live report carry
// a zero LastStatusUpdate.
func (a *Aggregator) storedSpots(ctx context.Context, origin geo.Point, radiusMeters float64, now time.Time) ([]domain.ReportedSpot, []domain.StaticSpot) {
	spots, err := a.store.FindNearby(ctx, origin.Latitude, origin.Longitude, radiusMeters)
	if err != nil {
		a.logger.Warn("store lookup failed, omitting stored spots", "error", err)
		return nil, nil
	}

	var live []domain.ReportedSpot
	var static []domain.StaticSpot
	for _, spot := range spots {
		distance := geo.Distance(origin, spot.Point())
		if spot.LastStatusUpdate.IsZero() {
			static = append(static, domain.StaticSpot{ParkingSpot: spot, DistanceMeters: distance})
			continue
		}
		live = append(live, domain.ReportedSpot{
			ParkingSpot:        spot,
			DistanceMeters:     distance,
			AdjustedConfidence: spot.Confidence * freshnessFactor(now.Sub(spot.LastStatusUpdate)),
		})
	}
	sort.Slice(live, func(i, j int) bool { return live[i].DistanceMeters < live[j].DistanceMeters })
	sort.Slice(static, func(i, j int) bool { return static[i].DistanceMeters < static[j].DistanceMeters })
	return live, static
}

func (a *Aggregator) nearbyPlaces(ctx context.Context, origin geo.Point, radiusMeters float64) []domain.NearbyPlace {
	found, err := a.places.SearchNearby(ctx, origin.Latitude, origin.Longitude, radiusMeters)
	if err != nil {
		if errors.Is(err, domain.ErrConfigMissing) {
			a.logger.Debug("places search not configured")
		} else {
			a.logger.Warn("places search failed, omitting facilities", "error", err)
		}
		return nil
	}

	nearby := make([]domain.NearbyPlace, 0, len(found))
	for _, c := range found {
		nearby = append(nearby, domain.NearbyPlace{
			CandidateSpot:  c,
			DistanceMeters: geo.Distance(origin, c.Point()),
		})
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].DistanceMeters < nearby[j].DistanceMeters })
	return nearby
}

// freshnessFactor scales a live report's confidence by its age. A spot
// reported free five minutes ago is probably still free; an hour-old report
// is close to noise.
func freshnessFactor(age time.Duration) float64 {
	switch {
	case age < 5*time.Minute:
		return 0.95
	case age < 15*time.Minute:
		return 0.85
	case age < 30*time.Minute:
		return 0.70
	case age < time.Hour:
		return 0.50
	case age < 2*time.Hour:
		return 0.30
	default:
		return 0.15
	}
}

// confidenceScore steps with the number of substantive categories that
// produced results. More independent kinds of evidence mean a more
// trustworthy answer, regardless of how many rows each returned.
func confidenceScore(categories int) float64 {
	switch categories {
	case 0:
		return 0.2
	case 1:
		return 0.5
	case 2:
		return 0.7
	default:
		return 0.85
	}
}

func summarize(result *domain.AvailabilityResult) domain.AvailabilitySummary {
	available := 0
	for _, r := range result.LiveReports {
		if r.CurrentlyAvailable {
			available++
		}
	}

	categories := 0
	for _, nonEmpty := range []bool{
		len(result.LiveReports) > 0,
		len(result.StaticSpots) > 0,
		len(result.Places) > 0,
	} {
		if nonEmpty {
			categories++
		}
	}

	return domain.AvailabilitySummary{
		TotalAvailableSpots: available,
		ConfidenceScore:     confidenceScore(categories),
		Recommendations:     recommendations(result, available),
	}
}

// recommendations renders the result as ordered human-readable guidance.
// Every category may be empty; the prediction line is always present.
func recommendations(result *domain.AvailabilityResult, available int) []string {
	var recs []string

	switch {
	case available > 0:
		nearest := -1.0
		for _, r := range result.LiveReports {
			if r.CurrentlyAvailable {
				nearest = r.DistanceMeters
				break
			}
		}
		recs = append(recs, fmt.Sprintf(
			"%d spot(s) reported available recently, nearest about %.0f m away", available, nearest))
	case len(result.LiveReports) > 0:
		recs = append(recs, "recent reports show nearby spots taken, expect to circle")
	}

	if n := len(result.StaticSpots); n > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d known parking location(s) within %.0f m from city data", n, result.Query.RadiusMeters))
	}

	if n := len(result.Places); n > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d garage(s) or lot(s) nearby, nearest about %.0f m away", n, result.Places[0].DistanceMeters))
	}

	recs = append(recs, fmt.Sprintf(
		"typical availability for %s at this hour is %s (%.0f%%)",
		result.GeneratedAt.Weekday(), result.Prediction.Tier, result.Prediction.Probability*100))
	return recs
}
