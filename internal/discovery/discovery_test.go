package discovery_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbdata/parking-aggregator/internal/adapter/memstore"
	"github.com/curbdata/parking-aggregator/internal/config"
	"github.com/curbdata/parking-aggregator/internal/discovery"
	"github.com/curbdata/parking-aggregator/internal/domain"
	"github.com/curbdata/parking-aggregator/internal/observability"
)

// --- mocks ---

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.SpotEvent
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, event domain.SpotEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) types() []domain.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.EventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

// --- helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*discovery.Service, *memstore.Store, *recordingNotifier, *clockwork.FakeClock) {
	t.Helper()
	store := memstore.New()
	notifier := &recordingNotifier{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC))
	svc := discovery.NewService(store, notifier, clock, testLogger(),
		observability.NewMetricsForTesting(),
		config.DiscoveryConfig{
			MatchRadiusMeters:     20,
			ConfirmationsToVerify: 3,
			DiscoveryPoints:       20,
		},
	)
	return svc, store, notifier, clock
}

// --- tests ---

func TestService_Report_DiscoversNewSpot(t *testing.T) {
	svc, store, notifier, clock := newTestService(t)

	result, err := svc.Report(context.Background(), 37.8716, -122.2727, domain.StatusAvailable, "rider-1")
	require.NoError(t, err)

	assert.True(t, result.IsNewDiscovery)
	assert.Equal(t, 20, result.PointsEarned)
	assert.Zero(t, result.DistanceMeters)

	spot := result.Spot
	assert.True(t, strings.HasPrefix(spot.ID, "user-"))
	assert.Equal(t, domain.SourceUserReport, spot.PrimarySource)
	assert.Equal(t, 0.70, spot.Confidence)
	assert.Equal(t, 1, spot.UserConfirmations)
	assert.False(t, spot.Verified)
	assert.True(t, spot.CurrentlyAvailable)
	assert.Equal(t, clock.Now().UTC(), spot.LastStatusUpdate)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, []domain.EventType{domain.EventSpotCreated}, notifier.types())
}

func TestService_Report_MatchesNearbySpot(t *testing.T) {
	svc, store, notifier, clock := newTestService(t)
	ctx := context.Background()

	first, err := svc.Report(ctx, 37.8716, -122.2727, domain.StatusAvailable, "rider-1")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	// ~1.4 m away, well inside the 20 m match radius.
	second, err := svc.Report(ctx, 37.87161, -122.27271, domain.StatusTaken, "rider-2")
	require.NoError(t, err)

	assert.False(t, second.IsNewDiscovery)
	assert.Zero(t, second.PointsEarned)
	assert.Greater(t, second.DistanceMeters, 0.0)
	assert.Less(t, second.DistanceMeters, 5.0)

	assert.Equal(t, first.Spot.ID, second.Spot.ID)
	assert.False(t, second.Spot.CurrentlyAvailable)
	assert.Equal(t, 0.95, second.Spot.Confidence)
	assert.Equal(t, clock.Now().UTC(), second.Spot.LastStatusUpdate)

	assert.Equal(t, 1, store.Len(), "a matched report never creates a spot")
	assert.Equal(t, []domain.EventType{domain.EventSpotCreated, domain.EventSpotUpdated}, notifier.types())
}

func TestService_Report_BeyondRadiusDiscoversSeparately(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Report(ctx, 37.8716, -122.2727, domain.StatusAvailable, "rider-1")
	require.NoError(t, err)

	// ~50 m north.
	result, err := svc.Report(ctx, 37.87205, -122.2727, domain.StatusAvailable, "rider-2")
	require.NoError(t, err)

	assert.True(t, result.IsNewDiscovery)
	assert.Equal(t, 2, store.Len())
}

func TestService_Report_RejectsInvalidCoordinates(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	_, err := svc.Report(context.Background(), 91, -122.2727, domain.StatusAvailable, "rider-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid coordinate")
	assert.Equal(t, 0, store.Len())
}

func TestService_Report_RejectsUnknownStatus(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	_, err := svc.Report(context.Background(), 37.8716, -122.2727, domain.SpotStatus("gone"), "rider-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown spot status")
	assert.Equal(t, 0, store.Len())
}

func TestService_Report_ConcurrentSameLocationCreatesOneSpot(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	const reporters = 8
	var discoveries atomic.Int32
	var wg sync.WaitGroup
	wg.Add(reporters)
	for i := 0; i < reporters; i++ {
		go func() {
			defer wg.Done()
			result, err := svc.Report(context.Background(), 37.8716, -122.2727, domain.StatusAvailable, "rider")
			if assert.NoError(t, err) && result.IsNewDiscovery {
				discoveries.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), discoveries.Load(), "exactly one report wins the discovery")
	assert.Equal(t, 1, store.Len())
}

func TestService_Confirm_ThirdConfirmationVerifies(t *testing.T) {
	svc, _, notifier, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Report(ctx, 37.8716, -122.2727, domain.StatusAvailable, "rider-1")
	require.NoError(t, err)
	id := created.Spot.ID

	second, err := svc.Confirm(ctx, id, "rider-2")
	require.NoError(t, err)
	assert.Equal(t, 2, second.UserConfirmations)
	assert.False(t, second.Verified)
	assert.Equal(t, 0.70, second.Confidence, "confidence holds until the spot verifies")

	third, err := svc.Confirm(ctx, id, "rider-3")
	require.NoError(t, err)
	assert.Equal(t, 3, third.UserConfirmations)
	assert.True(t, third.Verified)
	assert.Equal(t, 0.95, third.Confidence)

	assert.Equal(t, []domain.EventType{
		domain.EventSpotCreated,
		domain.EventSpotConfirmed,
		domain.EventSpotConfirmed,
	}, notifier.types())
}

func TestService_Confirm_IngestedSpotNeedsThreeConfirms(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	// Bulk-ingested spots carry no discovery credit; the counter starts at
	// zero and verification takes three full confirmations.
	ingested := domain.ParkingSpot{
		CandidateSpot: domain.CandidateSpot{
			Latitude:      37.8716,
			Longitude:     -122.2727,
			SpotType:      domain.SpotTypeMetered,
			Capacity:      1,
			PrimarySource: domain.SourceMeters,
			Confidence:    0.98,
		},
		ID: domain.NewSpotID(domain.SpotTypeMetered, 37.8716, -122.2727),
	}
	require.NoError(t, store.UpsertSpots(ctx, []domain.ParkingSpot{ingested}))

	var spot domain.ParkingSpot
	var err error
	for i := 0; i < 2; i++ {
		spot, err = svc.Confirm(ctx, ingested.ID, "rider")
		require.NoError(t, err)
		assert.False(t, spot.Verified)
	}

	spot, err = svc.Confirm(ctx, ingested.ID, "rider")
	require.NoError(t, err)
	assert.Equal(t, 3, spot.UserConfirmations)
	assert.True(t, spot.Verified)
	assert.Equal(t, 0.95, spot.Confidence)
}

func TestService_Confirm_PastThresholdOnlyCounts(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Report(ctx, 37.8716, -122.2727, domain.StatusAvailable, "rider-1")
	require.NoError(t, err)
	id := created.Spot.ID

	var last domain.ParkingSpot
	for i := 0; i < 4; i++ {
		last, err = svc.Confirm(ctx, id, "rider")
		require.NoError(t, err)
	}

	assert.Equal(t, 5, last.UserConfirmations)
	assert.True(t, last.Verified)
	assert.Equal(t, 0.95, last.Confidence)
}

func TestService_Confirm_UnknownSpot(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Confirm(context.Background(), "ghost", "rider-1")
	assert.ErrorIs(t, err, domain.ErrSpotNotFound)
}

func TestService_Report_PublishFailureDoesNotFailReport(t *testing.T) {
	store := memstore.New()
	broken := &recordingNotifier{err: errors.New("broker down")}
	svc := discovery.NewService(store, broken, clockwork.NewFakeClock(), testLogger(),
		observability.NewMetricsForTesting(),
		config.DiscoveryConfig{MatchRadiusMeters: 20, ConfirmationsToVerify: 3, DiscoveryPoints: 20},
	)

	result, err := svc.Report(context.Background(), 37.8716, -122.2727, domain.StatusAvailable, "rider-1")
	require.NoError(t, err, "event delivery is best-effort")
	assert.True(t, result.IsNewDiscovery)
	assert.Equal(t, 1, store.Len())
}
