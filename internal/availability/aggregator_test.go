package availability_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbdata/parking-aggregator/internal/adapter/memstore"
	"github.com/curbdata/parking-aggregator/internal/availability"
	"github.com/curbdata/parking-aggregator/internal/config"
	"github.com/curbdata/parking-aggregator/internal/domain"
	"github.com/curbdata/parking-aggregator/internal/observability"
)

// --- mocks ---

type stubSearcher struct {
	results []domain.CandidateSpot
	err     error
}

func (s *stubSearcher) SearchNearby(context.Context, float64, float64, float64) ([]domain.CandidateSpot, error) {
	return s.results, s.err
}

type failingStore struct{}

func (failingStore) UpsertSpots(context.Context, []domain.ParkingSpot) error {
	return errors.New("store down")
}

func (failingStore) FindNearby(context.Context, float64, float64, float64) ([]domain.ParkingSpot, error) {
	return nil, errors.New("store down")
}

func (failingStore) GetByID(context.Context, string) (domain.ParkingSpot, error) {
	return domain.ParkingSpot{}, errors.New("store down")
}

func (failingStore) Update(context.Context, string, domain.SpotUpdate) (domain.ParkingSpot, error) {
	return domain.ParkingSpot{}, errors.New("store down")
}

// --- helpers ---

// Saturday morning.
var queryTime = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAggregator(t *testing.T, store domain.SpotStore, searcher domain.PlaceSearcher) (*availability.Aggregator, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(queryTime)
	agg := availability.NewAggregator(store, searcher, clock, testLogger(),
		observability.NewMetricsForTesting(),
		config.AvailabilityConfig{DefaultRadiusMeters: 500},
	)
	return agg, clock
}

// staticSpot has never received a live report: LastStatusUpdate is zero.
func staticSpot(id string, lat, lon float64) domain.ParkingSpot {
	return domain.ParkingSpot{
		CandidateSpot: domain.CandidateSpot{
			Latitude:      lat,
			Longitude:     lon,
			SpotType:      domain.SpotTypeMetered,
			Capacity:      1,
			PrimarySource: domain.SourceMeters,
			Confidence:    0.98,
		},
		ID: id,
	}
}

func liveSpot(id string, lat, lon, confidence float64, reportedAt time.Time, available bool) domain.ParkingSpot {
	spot := staticSpot(id, lat, lon)
	spot.PrimarySource = domain.SourceUserReport
	spot.Confidence = confidence
	spot.CurrentlyAvailable = available
	spot.LastStatusUpdate = reportedAt
	return spot
}

func placeResult(id string, lat, lon float64) domain.CandidateSpot {
	return domain.CandidateSpot{
		Latitude:      lat,
		Longitude:     lon,
		Address:       "Test Garage",
		SpotType:      domain.SpotTypeGarage,
		Capacity:      120,
		PrimarySource: domain.SourcePlaces,
		SourceID:      id,
		Confidence:    0.85,
	}
}

// --- tests ---

func TestAggregator_Availability_PartitionsLiveAndStatic(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	// live-near ~10 m, live-stale ~20 m, meter ~30 m, too-far ~200 m (outside
	// the 100 m query radius).
	require.NoError(t, store.UpsertSpots(ctx, []domain.ParkingSpot{
		liveSpot("live-near", 37.78009, -122.4100, 0.95, queryTime.Add(-2*time.Minute), true),
		liveSpot("live-stale", 37.78018, -122.4100, 0.95, queryTime.Add(-40*time.Minute), false),
		staticSpot("meter", 37.78027, -122.4100),
		staticSpot("too-far", 37.78180, -122.4100),
	}))
	searcher := &stubSearcher{results: []domain.CandidateSpot{placeResult("p1", 37.7805, -122.4100)}}

	agg, _ := newTestAggregator(t, store, searcher)
	result, err := agg.Availability(ctx, 37.7800, -122.4100, 100)
	require.NoError(t, err)

	require.Len(t, result.LiveReports, 2)
	assert.Equal(t, "live-near", result.LiveReports[0].ID, "live reports come nearest first")
	assert.InDelta(t, 0.95*0.95, result.LiveReports[0].AdjustedConfidence, 1e-9)
	assert.Equal(t, "live-stale", result.LiveReports[1].ID)
	assert.InDelta(t, 0.95*0.50, result.LiveReports[1].AdjustedConfidence, 1e-9,
		"a 40 minute old report decays into the under-an-hour band")

	require.Len(t, result.StaticSpots, 1)
	assert.Equal(t, "meter", result.StaticSpots[0].ID)
	assert.InDelta(t, 30, result.StaticSpots[0].DistanceMeters, 2)

	require.Len(t, result.Places, 1)
	assert.Equal(t, 120, result.Places[0].Capacity)

	assert.Equal(t, 1, result.Summary.TotalAvailableSpots, "only currently-available live reports count")
	assert.Equal(t, 0.85, result.Summary.ConfidenceScore, "all three categories reported")
}

func TestAggregator_Availability_FreshnessDecayBands(t *testing.T) {
	cases := []struct {
		age    time.Duration
		factor float64
	}{
		{1 * time.Minute, 0.95},
		{10 * time.Minute, 0.85},
		{20 * time.Minute, 0.70},
		{45 * time.Minute, 0.50},
		{90 * time.Minute, 0.30},
		{3 * time.Hour, 0.15},
	}

	store := memstore.New()
	ctx := context.Background()
	for i, tc := range cases {
		spot := liveSpot(fmt.Sprintf("spot-%d", i), 37.7800+float64(i)*0.00001, -122.4100, 1.0, queryTime.Add(-tc.age), true)
		require.NoError(t, store.UpsertSpots(ctx, []domain.ParkingSpot{spot}))
	}

	agg, _ := newTestAggregator(t, store, &stubSearcher{})
	result, err := agg.Availability(ctx, 37.7800, -122.4100, 100)
	require.NoError(t, err)
	require.Len(t, result.LiveReports, len(cases))

	byID := make(map[string]float64, len(result.LiveReports))
	for _, r := range result.LiveReports {
		byID[r.ID] = r.AdjustedConfidence
	}
	for i, tc := range cases {
		assert.InDelta(t, tc.factor, byID[fmt.Sprintf("spot-%d", i)], 1e-9, "age %s", tc.age)
	}
}

func TestAggregator_Availability_ConfidenceStepsWithCategories(t *testing.T) {
	ctx := context.Background()
	origin := [2]float64{37.7800, -122.4100}

	scores := make([]float64, 0, 4)

	// 0 categories.
	agg, _ := newTestAggregator(t, memstore.New(), &stubSearcher{})
	result, err := agg.Availability(ctx, origin[0], origin[1], 100)
	require.NoError(t, err)
	scores = append(scores, result.Summary.ConfidenceScore)

	// 1: static only.
	store := memstore.New()
	require.NoError(t, store.UpsertSpots(ctx, []domain.ParkingSpot{staticSpot("m1", origin[0], origin[1])}))
	agg, _ = newTestAggregator(t, store, &stubSearcher{})
	result, err = agg.Availability(ctx, origin[0], origin[1], 100)
	require.NoError(t, err)
	scores = append(scores, result.Summary.ConfidenceScore)

	// 2: static + places.
	searcher := &stubSearcher{results: []domain.CandidateSpot{placeResult("p1", origin[0], origin[1])}}
	agg, _ = newTestAggregator(t, store, searcher)
	result, err = agg.Availability(ctx, origin[0], origin[1], 100)
	require.NoError(t, err)
	scores = append(scores, result.Summary.ConfidenceScore)

	// 3: live as well.
	require.NoError(t, store.UpsertSpots(ctx, []domain.ParkingSpot{
		liveSpot("l1", origin[0], origin[1], 0.95, queryTime.Add(-time.Minute), true),
	}))
	agg, _ = newTestAggregator(t, store, searcher)
	result, err = agg.Availability(ctx, origin[0], origin[1], 100)
	require.NoError(t, err)
	scores = append(scores, result.Summary.ConfidenceScore)

	assert.Equal(t, []float64{0.2, 0.5, 0.7, 0.85}, scores)
	for i := 1; i < len(scores); i++ {
		assert.Greater(t, scores[i], scores[i-1], "confidence must strictly increase with category count")
	}
}

func TestAggregator_Availability_StoreFailureDegrades(t *testing.T) {
	searcher := &stubSearcher{results: []domain.CandidateSpot{placeResult("p1", 37.7800, -122.4100)}}
	agg, _ := newTestAggregator(t, failingStore{}, searcher)

	result, err := agg.Availability(context.Background(), 37.7800, -122.4100, 100)
	require.NoError(t, err, "a read query never fails because one collaborator did")

	assert.Empty(t, result.LiveReports)
	assert.Empty(t, result.StaticSpots)
	assert.Len(t, result.Places, 1)
	assert.Equal(t, 0.5, result.Summary.ConfidenceScore)
}

func TestAggregator_Availability_PlacesFailureDegrades(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.UpsertSpots(context.Background(), []domain.ParkingSpot{staticSpot("m1", 37.7800, -122.4100)}))
	agg, _ := newTestAggregator(t, store, &stubSearcher{err: errors.New("upstream 500")})

	result, err := agg.Availability(context.Background(), 37.7800, -122.4100, 100)
	require.NoError(t, err)

	assert.Empty(t, result.Places)
	assert.Len(t, result.StaticSpots, 1)
	assert.Equal(t, 0.5, result.Summary.ConfidenceScore)
}

func TestAggregator_Availability_PlacesNotConfigured(t *testing.T) {
	agg, _ := newTestAggregator(t, memstore.New(), &stubSearcher{err: domain.ErrConfigMissing})

	result, err := agg.Availability(context.Background(), 37.7800, -122.4100, 100)
	require.NoError(t, err)
	assert.Empty(t, result.Places)
}

func TestAggregator_Availability_DefaultRadius(t *testing.T) {
	agg, _ := newTestAggregator(t, memstore.New(), &stubSearcher{})

	result, err := agg.Availability(context.Background(), 37.7800, -122.4100, 0)
	require.NoError(t, err)
	assert.Equal(t, 500.0, result.Query.RadiusMeters)
}

func TestAggregator_Availability_RejectsInvalidCoordinates(t *testing.T) {
	agg, _ := newTestAggregator(t, memstore.New(), &stubSearcher{})

	_, err := agg.Availability(context.Background(), -97, -122.4100, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid coordinate")
}

func TestAggregator_Availability_RecommendationsTolerateEmpty(t *testing.T) {
	agg, _ := newTestAggregator(t, memstore.New(), &stubSearcher{})

	result, err := agg.Availability(context.Background(), 37.7800, -122.4100, 100)
	require.NoError(t, err)

	require.Len(t, result.Summary.Recommendations, 1, "only the prediction line remains with no data")
	assert.Contains(t, result.Summary.Recommendations[0], "typical availability")
}

func TestPredict_Bands(t *testing.T) {
	cases := []struct {
		name        string
		at          time.Time
		probability float64
		tier        string
	}{
		{"weekday morning rush", time.Date(2026, time.March, 16, 8, 0, 0, 0, time.UTC), 0.25, "poor"},
		{"weekday evening rush", time.Date(2026, time.March, 16, 17, 30, 0, 0, time.UTC), 0.25, "poor"},
		{"weekday midday", time.Date(2026, time.March, 18, 12, 0, 0, 0, time.UTC), 0.45, "fair"},
		{"weekday evening", time.Date(2026, time.March, 19, 20, 0, 0, 0, time.UTC), 0.60, "fair"},
		{"weekend daytime", time.Date(2026, time.March, 14, 13, 0, 0, 0, time.UTC), 0.40, "fair"},
		{"weekend morning", time.Date(2026, time.March, 15, 8, 0, 0, 0, time.UTC), 0.55, "fair"},
		{"late night", time.Date(2026, time.March, 17, 23, 30, 0, 0, time.UTC), 0.85, "good"},
		{"early morning", time.Date(2026, time.March, 14, 3, 0, 0, 0, time.UTC), 0.85, "good"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := availability.Predict(tc.at)
			assert.Equal(t, tc.probability, p.Probability)
			assert.Equal(t, tc.tier, p.Tier)
			assert.NotEmpty(t, p.Note)
		})
	}
}
