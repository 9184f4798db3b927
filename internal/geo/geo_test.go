package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// One degree of latitude along a meridian, in meters (R * pi/180).
const oneDegreeMeters = 111194.92664455873

func TestDistance(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Point
		want  float64
		delta float64
	}{
		{
			name:  "identical points",
			a:     Point{Latitude: 37.7793, Longitude: -122.4193},
			b:     Point{Latitude: 37.7793, Longitude: -122.4193},
			want:  0,
			delta: 0.0001,
		},
		{
			name:  "one degree of latitude at the equator",
			a:     Point{Latitude: 0, Longitude: 0},
			b:     Point{Latitude: 1, Longitude: 0},
			want:  oneDegreeMeters,
			delta: 0.01,
		},
		{
			name:  "one degree of longitude at the equator",
			a:     Point{Latitude: 0, Longitude: 0},
			b:     Point{Latitude: 0, Longitude: 1},
			want:  oneDegreeMeters,
			delta: 0.01,
		},
		{
			name:  "curb-scale offset",
			a:     Point{Latitude: 37.7793, Longitude: -122.4193},
			b:     Point{Latitude: 37.77931, Longitude: -122.4193},
			want:  1.112,
			delta: 0.01,
		},
		{
			name:  "antimeridian neighbors",
			a:     Point{Latitude: 0, Longitude: 179.9999},
			b:     Point{Latitude: 0, Longitude: -179.9999},
			want:  2 * oneDegreeMeters * 0.0001,
			delta: 0.01,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Distance(tc.a, tc.b), tc.delta)
		})
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := Point{Latitude: 37.7793, Longitude: -122.4193}
	b := Point{Latitude: 37.8044, Longitude: -122.2712}

	assert.Equal(t, Distance(a, b), Distance(b, a))
}

func TestNearestWithin(t *testing.T) {
	origin := Point{Latitude: 37.7793, Longitude: -122.4193}
	points := []Point{
		{Latitude: 37.7793, Longitude: -122.4190}, // ~26m east
		{Latitude: 37.77931, Longitude: -122.4193}, // ~1.1m north
		{Latitude: 37.7893, Longitude: -122.4193}, // ~1.1km north
	}

	t.Run("returns nearest index and distance", func(t *testing.T) {
		idx, dist := NearestWithin(origin, points, 50)
		require.Equal(t, 1, idx)
		assert.InDelta(t, 1.112, dist, 0.01)
	})

	t.Run("threshold excludes far points", func(t *testing.T) {
		idx, _ := NearestWithin(origin, points, 0.5)
		assert.Equal(t, -1, idx)
	})

	t.Run("empty slice", func(t *testing.T) {
		idx, _ := NearestWithin(origin, nil, 100)
		assert.Equal(t, -1, idx)
	})

	t.Run("equidistant points resolve to the first", func(t *testing.T) {
		pair := []Point{
			{Latitude: 37.77931, Longitude: -122.4193},
			{Latitude: 37.77929, Longitude: -122.4193},
		}
		idx, _ := NearestWithin(origin, pair, 50)
		assert.Equal(t, 0, idx)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		point   Point
		wantErr bool
	}{
		{name: "valid city coordinate", point: Point{Latitude: 37.7793, Longitude: -122.4193}},
		{name: "boundary north pole", point: Point{Latitude: 90, Longitude: 0}},
		{name: "boundary antimeridian", point: Point{Latitude: 0, Longitude: -180}},
		{name: "latitude too large", point: Point{Latitude: 90.0001, Longitude: 0}, wantErr: true},
		{name: "latitude too small", point: Point{Latitude: -91, Longitude: 0}, wantErr: true},
		{name: "longitude too large", point: Point{Latitude: 0, Longitude: 180.5}, wantErr: true},
		{name: "longitude too small", point: Point{Latitude: 0, Longitude: -181}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.point.Validate()
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}

			var invalid *InvalidCoordinateError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tc.point.Latitude, invalid.Latitude)
			assert.Equal(t, tc.point.Longitude, invalid.Longitude)
		})
	}
}

func TestValidateDoesNotClamp(t *testing.T) {
	p := Point{Latitude: 137.7793, Longitude: -222.4193}

	err := p.Validate()
	require.Error(t, err)
	// The point itself is untouched; callers must reject, not repair.
	assert.Equal(t, 137.7793, p.Latitude)
	assert.Equal(t, -222.4193, p.Longitude)
}

func TestCellKey(t *testing.T) {
	const cell = 0.00005

	t.Run("nearby points share a cell", func(t *testing.T) {
		a := Point{Latitude: 37.77931, Longitude: -122.41931}
		b := Point{Latitude: 37.779312, Longitude: -122.419312}
		assert.Equal(t, CellKey(a, cell), CellKey(b, cell))
	})

	t.Run("distant points differ", func(t *testing.T) {
		a := Point{Latitude: 37.7793, Longitude: -122.4193}
		b := Point{Latitude: 37.7893, Longitude: -122.4193}
		assert.NotEqual(t, CellKey(a, cell), CellKey(b, cell))
	})

	t.Run("negative coordinates floor toward negative infinity", func(t *testing.T) {
		a := Point{Latitude: -0.00001, Longitude: 0.00001}
		assert.Equal(t, "-1:0", CellKey(a, cell))
	})
}

func TestCellBlock(t *testing.T) {
	const cell = 0.0002

	t.Run("returns four sorted keys", func(t *testing.T) {
		keys := CellBlock(Point{Latitude: 37.7793, Longitude: -122.4193}, cell)
		require.Len(t, keys, 4)
		for i := 1; i < len(keys); i++ {
			assert.LessOrEqual(t, keys[i-1], keys[i])
		}
	})

	t.Run("points straddling a cell boundary share keys", func(t *testing.T) {
		left := Point{Latitude: 0.00005, Longitude: 0.000199}
		right := Point{Latitude: 0.00005, Longitude: 0.000201}

		shared := 0
		for _, lk := range CellBlock(left, cell) {
			for _, rk := range CellBlock(right, cell) {
				if lk == rk {
					shared++
				}
			}
		}
		assert.GreaterOrEqual(t, shared, 1)
	})
}
