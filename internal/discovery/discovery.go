// Package discovery implements the live-report flow: matching user reports
// against known spots, creating unverified spots for unmatched reports, and
// promoting spots to verified once enough users confirm them.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/curbdata/parking-aggregator/internal/config"
	"github.com/curbdata/parking-aggregator/internal/domain"
	"github.com/curbdata/parking-aggregator/internal/geo"
	"github.com/curbdata/parking-aggregator/internal/observability"
)

// metersPerDegree approximates one degree of latitude.
const metersPerDegree = 111320.0

const (
	// matchedConfidence is assigned when a report matches a known spot. A
	// human standing at the spot outranks every bulk source.
	matchedConfidence = 0.95

	// discoveredConfidence is the starting confidence of a user-discovered
	// spot, below every bulk source baseline.
	discoveredConfidence = 0.70

	// verifiedConfidence is assigned when confirmations promote a spot.
	verifiedConfidence = 0.95
)

// ReportResult is the outcome of one user report.
type ReportResult struct {
	Spot           domain.ParkingSpot `json:"spot"`
	IsNewDiscovery bool               `json:"is_new_discovery"`
	DistanceMeters float64            `json:"distance_meters"`
	PointsEarned   int                `json:"points_earned"`
}

// Service handles user spot reports and confirmations.
//
// The nearest-match-then-write sequence is not atomic on its own: two
// concurrent reports for the same unmapped location would both see "no
// match" and both create a spot. Reports therefore serialize on the 2x2
// block of grid cells around the reported point; cells are sized so any two
// points within the match radius always share at least one lock.
type Service struct {
	store    domain.SpotStore
	notifier domain.Notifier
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	matchRadius      float64
	confirmsToVerify int
	discoveryPoints  int
	lockCellDegrees  float64

	mu    sync.Mutex
	cells map[string]*sync.Mutex
}

// NewService creates the discovery service.
func NewService(
	store domain.SpotStore,
	notifier domain.Notifier,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
	cfg config.DiscoveryConfig,
) *Service {
	return &Service{
		store:            store,
		notifier:         notifier,
		clock:            clock,
		logger:           logger,
		metrics:          metrics,
		matchRadius:      cfg.MatchRadiusMeters,
		confirmsToVerify: cfg.ConfirmationsToVerify,
		discoveryPoints:  cfg.DiscoveryPoints,
		lockCellDegrees:  2 * cfg.MatchRadiusMeters / metersPerDegree,
		cells:            make(map[string]*sync.Mutex),
	}
}

// Report records a user's observation at a coordinate. A report within the
// match radius of a known spot updates that spot's live status; anything
// else discovers a new unverified spot and awards the discovery bonus.
func (s *Service) Report(ctx context.Context, lat, lon float64, status domain.SpotStatus, reporterID string) (*ReportResult, error) {
	point := geo.Point{Latitude: lat, Longitude: lon}
	if err := point.Validate(); err != nil {
		return nil, err
	}
	if err := status.Validate(); err != nil {
		return nil, err
	}

	unlock := s.lockBlock(point)
	defer unlock()

	nearby, err := s.store.FindNearby(ctx, lat, lon, s.matchRadius)
	if err != nil {
		return nil, fmt.Errorf("find nearby spots: %w", err)
	}
	points := make([]geo.Point, len(nearby))
	for i, spot := range nearby {
		points[i] = spot.Point()
	}

	idx, distance := geo.NearestWithin(point, points, s.matchRadius)
	if idx >= 0 {
		return s.updateMatched(ctx, nearby[idx], distance, status, reporterID)
	}
	return s.createDiscovered(ctx, point, status, reporterID)
}

// Confirm records that a user vouched for an existing spot. Reaching the
// confirmation threshold promotes the spot to verified; confirmations past
// the threshold only increment the counter.
func (s *Service) Confirm(ctx context.Context, spotID, reporterID string) (domain.ParkingSpot, error) {
	located, err := s.store.GetByID(ctx, spotID)
	if err != nil {
		return domain.ParkingSpot{}, fmt.Errorf("confirm spot %s: %w", spotID, err)
	}

	unlock := s.lockBlock(located.Point())
	defer unlock()

	// Re-read under the lock so concurrent confirmations of the same spot
	// cannot lose increments.
	spot, err := s.store.GetByID(ctx, spotID)
	if err != nil {
		return domain.ParkingSpot{}, fmt.Errorf("confirm spot %s: %w", spotID, err)
	}

	confirmations := spot.UserConfirmations + 1
	update := domain.SpotUpdate{UserConfirmations: &confirmations}

	promoted := !spot.Verified && confirmations >= s.confirmsToVerify
	if promoted {
		verified := true
		confidence := verifiedConfidence
		update.Verified = &verified
		update.Confidence = &confidence
	}

	updated, err := s.store.Update(ctx, spotID, update)
	if err != nil {
		return domain.ParkingSpot{}, fmt.Errorf("confirm spot %s: %w", spotID, err)
	}

	s.metrics.Confirmations.Inc()
	if promoted {
		s.metrics.SpotsVerified.Inc()
		s.logger.Info("spot verified by confirmations", "spot_id", spotID, "confirmations", confirmations)
	}
	s.publish(ctx, domain.EventSpotConfirmed, updated, reporterID)
	return updated, nil
}

func (s *Service) updateMatched(ctx context.Context, spot domain.ParkingSpot, distance float64, status domain.SpotStatus, reporterID string) (*ReportResult, error) {
	now := s.clock.Now().UTC()
	available := status.Available()
	confidence := matchedConfidence

	updated, err := s.store.Update(ctx, spot.ID, domain.SpotUpdate{
		CurrentlyAvailable: &available,
		Confidence:         &confidence,
		LastStatusUpdate:   &now,
	})
	if err != nil {
		return nil, fmt.Errorf("update spot %s: %w", spot.ID, err)
	}

	s.metrics.ReportsReceived.WithLabelValues("matched").Inc()
	s.logger.Info("report matched existing spot",
		"spot_id", updated.ID,
		"status", status,
		"distance_m", distance,
		"reporter", reporterID,
	)
	s.publish(ctx, domain.EventSpotUpdated, updated, reporterID)

	return &ReportResult{Spot: updated, DistanceMeters: distance}, nil
}

func (s *Service) createDiscovered(ctx context.Context, p geo.Point, status domain.SpotStatus, reporterID string) (*ReportResult, error) {
	now := s.clock.Now().UTC()
	available := status.Available()

	spot := domain.ParkingSpot{
		CandidateSpot: domain.CandidateSpot{
			Latitude:        p.Latitude,
			Longitude:       p.Longitude,
			SpotType:        domain.SpotTypeStreet,
			Capacity:        1,
			PrimarySource:   domain.SourceUserReport,
			Confidence:      discoveredConfidence,
			VerifiedSources: []string{domain.SourceUserReport},
		},
		ID:                 domain.NewUserSpotID(),
		CurrentlyAvailable: available,
		UserConfirmations:  1,
		LastStatusUpdate:   now,
	}
	if available {
		spot.AvailableSpaces = 1
	}

	if err := s.store.UpsertSpots(ctx, []domain.ParkingSpot{spot}); err != nil && !errors.Is(err, domain.ErrDuplicateWrite) {
		return nil, fmt.Errorf("create spot: %w", err)
	}

	s.metrics.ReportsReceived.WithLabelValues("discovered").Inc()
	s.logger.Info("report discovered new spot",
		"spot_id", spot.ID,
		"status", status,
		"reporter", reporterID,
	)
	s.publish(ctx, domain.EventSpotCreated, spot, reporterID)

	return &ReportResult{Spot: spot, IsNewDiscovery: true, PointsEarned: s.discoveryPoints}, nil
}

// lockBlock locks the cell block around p and returns the unlock function.
// geo.CellBlock returns keys sorted, which fixes the acquisition order and
// prevents deadlock between overlapping blocks.
func (s *Service) lockBlock(p geo.Point) func() {
	keys := geo.CellBlock(p, s.lockCellDegrees)

	locks := make([]*sync.Mutex, len(keys))
	s.mu.Lock()
	for i, key := range keys {
		lock, ok := s.cells[key]
		if !ok {
			lock = &sync.Mutex{}
			s.cells[key] = lock
		}
		locks[i] = lock
	}
	s.mu.Unlock()

	for _, lock := range locks {
		lock.Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

// publish sends a lifecycle event. Failures are counted and logged, never
// returned: the write that produced the event already succeeded.
func (s *Service) publish(ctx context.Context, eventType domain.EventType, spot domain.ParkingSpot, reporterID string) {
	event := domain.SpotEvent{
		Type:       eventType,
		Spot:       spot,
		ReporterID: reporterID,
		OccurredAt: s.clock.Now().UTC(),
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.metrics.EventErrors.Inc()
		s.logger.Error("event publish failed", "type", eventType, "spot_id", spot.ID, "error", err)
		return
	}
	s.metrics.EventsPublished.WithLabelValues(string(eventType)).Inc()
}
