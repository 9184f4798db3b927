package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpotID(t *testing.T) {
	t.Run("deterministic for equal inputs", func(t *testing.T) {
		a := NewSpotID(SpotTypeMetered, 37.77931, -122.41931)
		b := NewSpotID(SpotTypeMetered, 37.77931, -122.41931)
		assert.Equal(t, a, b)
	})

	t.Run("stable under sub-rounding jitter", func(t *testing.T) {
		a := NewSpotID(SpotTypeMetered, 37.779310, -122.419310)
		b := NewSpotID(SpotTypeMetered, 37.779314, -122.419312)
		assert.Equal(t, a, b)
	})

	t.Run("distinct locations get distinct ids", func(t *testing.T) {
		a := NewSpotID(SpotTypeMetered, 37.7793, -122.4193)
		b := NewSpotID(SpotTypeMetered, 37.7893, -122.4193)
		assert.NotEqual(t, a, b)
	})

	t.Run("distinct types get distinct ids", func(t *testing.T) {
		a := NewSpotID(SpotTypeMetered, 37.7793, -122.4193)
		b := NewSpotID(SpotTypeGarage, 37.7793, -122.4193)
		assert.NotEqual(t, a, b)
	})

	t.Run("id is prefixed with the spot type", func(t *testing.T) {
		id := NewSpotID(SpotTypeStreet, 37.7793, -122.4193)
		assert.True(t, strings.HasPrefix(id, "street-"))
	})

	t.Run("empty type falls back to generic prefix", func(t *testing.T) {
		id := NewSpotID("", 37.7793, -122.4193)
		assert.True(t, strings.HasPrefix(id, "spot-"))
	})
}

func TestNewUserSpotID(t *testing.T) {
	a := NewUserSpotID()
	b := NewUserSpotID()

	assert.True(t, strings.HasPrefix(a, "user-"))
	assert.NotEqual(t, a, b)
}

func TestUnionSources(t *testing.T) {
	tests := []struct {
		name string
		sets [][]string
		want []string
	}{
		{
			name: "merges and sorts",
			sets: [][]string{{SourceMeters}, {SourceCensus, SourceMeters}},
			want: []string{SourceCensus, SourceMeters},
		},
		{
			name: "drops empty names",
			sets: [][]string{{"", SourceCitations}, {""}},
			want: []string{SourceCitations},
		},
		{
			name: "all empty yields nil",
			sets: [][]string{nil, {}},
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UnionSources(tc.sets...))
		})
	}
}

func TestRegulationsMerge(t *testing.T) {
	base := Regulations{
		TimeLimitMinutes: 60,
		Hours:            "Mon-Fri 9am-6pm",
		CurbColor:        "grey",
		Extra:            map[string]string{"street_cleaning": "Tue 4-6am", "zone": "A"},
	}
	over := Regulations{
		TimeLimitMinutes: 120,
		Metered:          true,
		HourlyRate:       3.5,
		Extra:            map[string]string{"zone": "B"},
	}

	got := base.Merge(over)

	assert.Equal(t, 120, got.TimeLimitMinutes)
	assert.Equal(t, "Mon-Fri 9am-6pm", got.Hours)
	assert.Equal(t, "grey", got.CurbColor)
	assert.True(t, got.Metered)
	assert.Equal(t, 3.5, got.HourlyRate)
	assert.Equal(t, map[string]string{"street_cleaning": "Tue 4-6am", "zone": "B"}, got.Extra)

	// Inputs are untouched.
	assert.Equal(t, "A", base.Extra["zone"])
	assert.Equal(t, 60, base.TimeLimitMinutes)
}

func TestParkingSpotApply(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	spot := ParkingSpot{
		ID: "metered-abc",
		CandidateSpot: CandidateSpot{
			Confidence:      0.7,
			VerifiedSources: []string{SourceMeters},
		},
		UserConfirmations: 1,
	}

	available := true
	confidence := 0.95
	confirmations := 2

	got := spot.Apply(SpotUpdate{
		CurrentlyAvailable: &available,
		Confidence:         &confidence,
		UserConfirmations:  &confirmations,
		VerifiedSources:    []string{SourceMeters, SourceUserReport},
		LastStatusUpdate:   &now,
	})

	assert.True(t, got.CurrentlyAvailable)
	assert.Equal(t, 0.95, got.Confidence)
	assert.Equal(t, 2, got.UserConfirmations)
	assert.Equal(t, []string{SourceMeters, SourceUserReport}, got.VerifiedSources)
	assert.Equal(t, now, got.LastStatusUpdate)
	// Untouched fields carry through.
	assert.Equal(t, "metered-abc", got.ID)
	assert.False(t, got.Verified)

	// Nil fields leave the original values alone.
	unchanged := spot.Apply(SpotUpdate{})
	assert.Equal(t, spot, unchanged)
}

func TestCandidateSpotValidate(t *testing.T) {
	valid := CandidateSpot{Latitude: 37.7793, Longitude: -122.4193}
	require.NoError(t, valid.Validate())

	invalid := CandidateSpot{Latitude: 91.2, Longitude: -122.4193}
	assert.Error(t, invalid.Validate())
}
