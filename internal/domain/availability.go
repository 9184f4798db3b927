package domain

import "time"

// AvailabilityQuery is a point-radius availability request.
type AvailabilityQuery struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

// ReportedSpot is a user-reported spot annotated for an availability
// response. AdjustedConfidence is the stored confidence after freshness
// decay; it never exceeds the stored value.
type ReportedSpot struct {
	ParkingSpot
	DistanceMeters     float64 `json:"distance_meters"`
	AdjustedConfidence float64 `json:"adjusted_confidence"`
}

// StaticSpot is a bulk-ingested spot annotated with its distance from the
// query point.
type StaticSpot struct {
	ParkingSpot
	DistanceMeters float64 `json:"distance_meters"`
}

// NearbyPlace is a live places-search result (garage or lot) annotated with
// its distance from the query point.
type NearbyPlace struct {
	CandidateSpot
	DistanceMeters float64 `json:"distance_meters"`
}

// Prediction is a time-of-day availability estimate used when live data is
// thin. Probability is the estimated chance of finding an open spot.
type Prediction struct {
	Probability float64 `json:"probability"`
	Tier        string  `json:"tier"`
	Note        string  `json:"note"`
}

// AvailabilitySummary aggregates a result for quick display.
type AvailabilitySummary struct {
	TotalAvailableSpots int      `json:"total_available_spots"`
	ConfidenceScore     float64  `json:"confidence_score"`
	Recommendations     []string `json:"recommendations"`
}

// AvailabilityResult is the full answer to an availability query. Each
// category is independently best-effort: a failed collaborator leaves its
// category empty rather than failing the query.
type AvailabilityResult struct {
	Query       AvailabilityQuery   `json:"query"`
	LiveReports []ReportedSpot      `json:"live_reports"`
	StaticSpots []StaticSpot        `json:"static_spots"`
	Places      []NearbyPlace       `json:"places"`
	Prediction  Prediction          `json:"prediction"`
	Summary     AvailabilitySummary `json:"summary"`
	GeneratedAt time.Time           `json:"generated_at"`
}
