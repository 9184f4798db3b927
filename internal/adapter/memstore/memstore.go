// Package memstore provides a mutex-guarded in-memory SpotStore. It backs
// the "memory" store driver and most tests; data does not survive a restart.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/curbdata/parking-aggregator/internal/domain"
	"github.com/curbdata/parking-aggregator/internal/geo"
)

// Store is an in-memory domain.SpotStore keyed by spot ID. Deactivated
// spots keep their row but are invisible to every read.
type Store struct {
	mu       sync.RWMutex
	spots    map[string]domain.ParkingSpot
	inactive map[string]struct{}
}

// New creates an empty store.
func New() *Store {
	return &Store{
		spots:    make(map[string]domain.ParkingSpot),
		inactive: make(map[string]struct{}),
	}
}

// UpsertSpots inserts or replaces spots by ID. Replacing an existing spot is
// not an error; the write is idempotent. Upserting a deactivated spot
// reactivates it: being re-observed by a source means it exists again.
func (s *Store) UpsertSpots(_ context.Context, spots []domain.ParkingSpot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, spot := range spots {
		if spot.ID == "" {
			return fmt.Errorf("upsert spot at (%.5f, %.5f): missing id", spot.Latitude, spot.Longitude)
		}
		s.spots[spot.ID] = spot
		delete(s.inactive, spot.ID)
	}
	return nil
}

// FindNearby returns every active spot within radiusMeters of the given
// point. The scan is linear over all spots; order is unspecified.
func (s *Store) FindNearby(_ context.Context, lat, lon, radiusMeters float64) ([]domain.ParkingSpot, error) {
	origin := geo.Point{Latitude: lat, Longitude: lon}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ParkingSpot
	for id, spot := range s.spots {
		if _, gone := s.inactive[id]; gone {
			continue
		}
		if geo.Distance(origin, spot.Point()) <= radiusMeters {
			out = append(out, spot)
		}
	}
	return out, nil
}

// GetByID returns the active spot with the given ID.
func (s *Store) GetByID(_ context.Context, id string) (domain.ParkingSpot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spot, ok := s.lookup(id)
	if !ok {
		return domain.ParkingSpot{}, fmt.Errorf("spot %q: %w", id, domain.ErrSpotNotFound)
	}
	return spot, nil
}

// Update applies a partial update to the spot with the given ID and returns
// the result.
func (s *Store) Update(_ context.Context, id string, update domain.SpotUpdate) (domain.ParkingSpot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spot, ok := s.lookup(id)
	if !ok {
		return domain.ParkingSpot{}, fmt.Errorf("spot %q: %w", id, domain.ErrSpotNotFound)
	}
	updated := spot.Apply(update)
	s.spots[id] = updated
	return updated, nil
}

// Deactivate hides the spot from all reads without deleting its row.
func (s *Store) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(id); !ok {
		return fmt.Errorf("spot %q: %w", id, domain.ErrSpotNotFound)
	}
	s.inactive[id] = struct{}{}
	return nil
}

// Len returns the number of active spots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.spots) - len(s.inactive)
}

// lookup must be called with at least a read lock held.
func (s *Store) lookup(id string) (domain.ParkingSpot, bool) {
	if _, gone := s.inactive[id]; gone {
		return domain.ParkingSpot{}, false
	}
	spot, ok := s.spots[id]
	return spot, ok
}
