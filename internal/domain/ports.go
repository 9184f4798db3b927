package domain

import (
	"context"
	"time"
)

// SpotStore is the persistence port. Implementations must make UpsertSpots
// idempotent for spots with equal IDs and must never return partial results
// from FindNearby.
type SpotStore interface {
	// UpsertSpots inserts or replaces a batch of spots keyed by ID.
	UpsertSpots(ctx context.Context, spots []ParkingSpot) error

	// FindNearby returns all active spots within radiusMeters of the given
	// point, in no particular order.
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64) ([]ParkingSpot, error)

	// GetByID returns the spot with the given ID or ErrSpotNotFound.
	GetByID(ctx context.Context, id string) (ParkingSpot, error)

	// Update applies a partial update to the spot with the given ID and
	// returns the updated spot, or ErrSpotNotFound.
	Update(ctx context.Context, id string, update SpotUpdate) (ParkingSpot, error)
}

// PlaceSearcher finds parking facilities near a coordinate. Availability
// queries use it for live lookups alongside the persisted spot inventory.
type PlaceSearcher interface {
	SearchNearby(ctx context.Context, lat, lon, radiusMeters float64) ([]CandidateSpot, error)
}

// EventType classifies spot lifecycle events.
type EventType string

const (
	EventSpotCreated   EventType = "spot_created"
	EventSpotUpdated   EventType = "spot_updated"
	EventSpotConfirmed EventType = "spot_confirmed"
	EventSpotDeleted   EventType = "spot_deleted"
)

// SpotEvent is emitted after a successful spot create, update, confirm, or
// delete so downstream consumers can react without polling.
type SpotEvent struct {
	Type       EventType   `json:"type"`
	Spot       ParkingSpot `json:"spot"`
	ReporterID string      `json:"reporter_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Notifier is the event sink port. Publish failures are logged by callers
// but never fail the operation that produced the event.
type Notifier interface {
	Publish(ctx context.Context, event SpotEvent) error
}

// NopNotifier discards events. Used when no broker is configured.
type NopNotifier struct{}

// Publish implements Notifier.
func (NopNotifier) Publish(context.Context, SpotEvent) error { return nil }
