package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/curbdata/parking-aggregator/internal/geo"
)

// Source names recorded in PrimarySource and VerifiedSources.
const (
	SourceMeters     = "sf_meters"
	SourceCensus     = "sf_parking_census"
	SourceCitations  = "sf_citations"
	SourcePlaces     = "places_api"
	SourceCommunity  = "community_geodata"
	SourceUserReport = "user_report"
)

// SpotType classifies the kind of parking a spot offers.
type SpotType string

const (
	SpotTypeStreet     SpotType = "street"
	SpotTypeMetered    SpotType = "metered"
	SpotTypeLot        SpotType = "lot"
	SpotTypeGarage     SpotType = "garage"
	SpotTypeHandicap   SpotType = "handicap"
	SpotTypeMotorcycle SpotType = "motorcycle"
	SpotTypeEVCharging SpotType = "ev_charging"
)

// SpotStatus is the state a user report asserts about a spot.
type SpotStatus string

const (
	StatusAvailable SpotStatus = "available"
	StatusTaken     SpotStatus = "taken"
)

// ParseSpotStatus converts a reported status string, rejecting anything but
// the two known values.
func ParseSpotStatus(s string) (SpotStatus, error) {
	status := SpotStatus(s)
	if err := status.Validate(); err != nil {
		return "", err
	}
	return status, nil
}

// Validate rejects unknown status values.
func (s SpotStatus) Validate() error {
	switch s {
	case StatusAvailable, StatusTaken:
		return nil
	default:
		return fmt.Errorf("unknown spot status %q", string(s))
	}
}

// Available reports whether the status marks the spot as free to take.
func (s SpotStatus) Available() bool { return s == StatusAvailable }

// Regulations captures the rules attached to a spot. Sources report
// different subsets; unknown fields stay zero. Extra holds source-specific
// rules that have no dedicated field (e.g. street-cleaning windows).
type Regulations struct {
	TimeLimitMinutes int               `json:"time_limit_minutes,omitempty"`
	Hours            string            `json:"hours,omitempty"`
	Metered          bool              `json:"metered,omitempty"`
	HourlyRate       float64           `json:"hourly_rate,omitempty"`
	CurbColor        string            `json:"curb_color,omitempty"`
	PermitZone       string            `json:"permit_zone,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// Merge overlays over onto r: non-zero fields of over win, Extra maps are
// merged key-wise with over's entries winning. Neither input is mutated.
func (r Regulations) Merge(over Regulations) Regulations {
	out := r
	if over.TimeLimitMinutes != 0 {
		out.TimeLimitMinutes = over.TimeLimitMinutes
	}
	if over.Hours != "" {
		out.Hours = over.Hours
	}
	if over.Metered {
		out.Metered = true
	}
	if over.HourlyRate != 0 {
		out.HourlyRate = over.HourlyRate
	}
	if over.CurbColor != "" {
		out.CurbColor = over.CurbColor
	}
	if over.PermitZone != "" {
		out.PermitZone = over.PermitZone
	}
	if len(over.Extra) > 0 {
		merged := make(map[string]string, len(r.Extra)+len(over.Extra))
		for k, v := range r.Extra {
			merged[k] = v
		}
		for k, v := range over.Extra {
			merged[k] = v
		}
		out.Extra = merged
	}
	return out
}

// CandidateSpot is a normalized record from one source, before
// deduplication. Confidence 0 means the adapter did not assign one.
type CandidateSpot struct {
	Latitude          float64     `json:"latitude"`
	Longitude         float64     `json:"longitude"`
	Address           string      `json:"address,omitempty"`
	SpotType          SpotType    `json:"spot_type"`
	Capacity          int         `json:"capacity"`
	PrimarySource     string      `json:"primary_source"`
	SourceID          string      `json:"source_id,omitempty"`
	Confidence        float64     `json:"confidence"`
	VerifiedSources   []string    `json:"verified_sources,omitempty"`
	Regulations       Regulations `json:"regulations"`
	NeedsVerification bool        `json:"needs_verification"`
}

// Point returns the candidate's coordinates.
func (c CandidateSpot) Point() geo.Point {
	return geo.Point{Latitude: c.Latitude, Longitude: c.Longitude}
}

// Validate rejects candidates with out-of-range coordinates.
func (c CandidateSpot) Validate() error {
	return c.Point().Validate()
}

// ParkingSpot is a deduplicated, persisted spot. The embedded CandidateSpot
// carries the merged source data; the remaining fields track live status.
type ParkingSpot struct {
	CandidateSpot
	ID                 string    `json:"id"`
	AvailableSpaces    int       `json:"available_spaces"`
	CurrentlyAvailable bool      `json:"currently_available"`
	UserConfirmations  int       `json:"user_confirmations"`
	Verified           bool      `json:"verified"`
	LastStatusUpdate   time.Time `json:"last_status_update"`
}

// NewSpotID produces a deterministic ID from a spot's type and coordinates.
// Rounding to four decimals (~11 m) keeps the ID stable across ingestion
// runs even as merge centroids drift a little, so upserts stay idempotent.
func NewSpotID(spotType SpotType, lat, lon float64) string {
	input := fmt.Sprintf("%s|%.4f|%.4f", spotType, lat, lon)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if spotType == "" {
		return "spot-" + short
	}
	return string(spotType) + "-" + short
}

// NewUserSpotID produces a random ID for a spot discovered by a user
// report. User spots have no upstream record to stay stable against.
func NewUserSpotID() string {
	return "user-" + uuid.NewString()
}

// UnionSources merges source-name sets into one sorted, de-duplicated
// slice. Empty names are dropped.
func UnionSources(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, name := range set {
			if name == "" {
				continue
			}
			seen[name] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SpotUpdate is a partial update applied to a stored spot. Nil fields are
// left unchanged.
type SpotUpdate struct {
	AvailableSpaces    *int
	CurrentlyAvailable *bool
	Confidence         *float64
	UserConfirmations  *int
	Verified           *bool
	VerifiedSources    []string
	LastStatusUpdate   *time.Time
}

// Apply returns a copy of the spot with the update's non-nil fields set.
func (s ParkingSpot) Apply(u SpotUpdate) ParkingSpot {
	if u.AvailableSpaces != nil {
		s.AvailableSpaces = *u.AvailableSpaces
	}
	if u.CurrentlyAvailable != nil {
		s.CurrentlyAvailable = *u.CurrentlyAvailable
	}
	if u.Confidence != nil {
		s.Confidence = *u.Confidence
	}
	if u.UserConfirmations != nil {
		s.UserConfirmations = *u.UserConfirmations
	}
	if u.Verified != nil {
		s.Verified = *u.Verified
	}
	if u.VerifiedSources != nil {
		s.VerifiedSources = UnionSources(u.VerifiedSources)
	}
	if u.LastStatusUpdate != nil {
		s.LastStatusUpdate = *u.LastStatusUpdate
	}
	return s
}
