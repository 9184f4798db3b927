// Package geo provides the coordinate math every other component leans on:
// great-circle distances, nearest-neighbor scans, and the degree-grid cell
// keys used for spatial bucketing and lock sharding.
//
// All distances are in meters. Coordinates are WGS84 decimal degrees.
package geo

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// InvalidCoordinateError reports a coordinate outside the valid WGS84 range.
// Out-of-range coordinates are rejected, never clamped: a clamped coordinate
// silently relocates a spot, which is worse than failing the request.
type InvalidCoordinateError struct {
	Latitude  float64
	Longitude float64
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate (%.6f, %.6f): latitude must be in [-90, 90], longitude in [-180, 180]", e.Latitude, e.Longitude)
}

// Validate checks that the point lies within the valid WGS84 range.
func (p Point) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return &InvalidCoordinateError{Latitude: p.Latitude, Longitude: p.Longitude}
	}
	return nil
}

// Distance returns the great-circle distance between two points in meters,
// computed with the haversine formula. Accurate to within ~0.5% at city
// scale, which is far below the dedup threshold.
func Distance(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// NearestWithin scans points linearly and returns the index of the point
// nearest to origin that is within maxMeters, along with its distance.
// Returns (-1, 0) when no point qualifies. Ties go to the first point at
// the minimum distance, so results are stable for a given input order.
func NearestWithin(origin Point, points []Point, maxMeters float64) (int, float64) {
	best := -1
	bestDist := 0.0
	for i, p := range points {
		d := Distance(origin, p)
		if d > maxMeters {
			continue
		}
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist
}

// CellKey maps a point onto a square degree grid and returns the cell's key.
// Points in the same cell share a key. Keys are only comparable for the same
// cellDegrees value.
func CellKey(p Point, cellDegrees float64) string {
	row := int64(math.Floor(p.Latitude / cellDegrees))
	col := int64(math.Floor(p.Longitude / cellDegrees))
	return strconv.FormatInt(row, 10) + ":" + strconv.FormatInt(col, 10)
}

// CellBlock returns the keys of the 2x2 block of cells nearest to p, sorted
// lexically. The block always covers every cell whose contents can lie
// within cellDegrees/2 of p, so two callers working near the same boundary
// always share at least one key. Sorted order gives lock acquirers a global
// ordering that prevents deadlock.
func CellBlock(p Point, cellDegrees float64) []string {
	rowF := p.Latitude / cellDegrees
	colF := p.Longitude / cellDegrees
	row := math.Floor(rowF)
	col := math.Floor(colF)

	// Step toward whichever neighbor the point is closest to in each axis.
	dRow := -1.0
	if rowF-row >= 0.5 {
		dRow = 1.0
	}
	dCol := -1.0
	if colF-col >= 0.5 {
		dCol = 1.0
	}

	keys := []string{
		cellKeyFor(row, col),
		cellKeyFor(row+dRow, col),
		cellKeyFor(row, col+dCol),
		cellKeyFor(row+dRow, col+dCol),
	}
	sort.Strings(keys)
	return keys
}

func cellKeyFor(row, col float64) string {
	return strconv.FormatInt(int64(row), 10) + ":" + strconv.FormatInt(int64(col), 10)
}
