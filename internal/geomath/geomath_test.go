package geomath_test

import (
	"math"
	"testing"

	"pairsense-backend/internal/geomath"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokyoLat, tokyoLng = 35.6762, 139.6503
	osakaLat, osakaLng = 34.6937, 135.5023
)

func TestDistanceKm_ZeroForSamePoint(t *testing.T) {
	assert.Zero(t, geomath.DistanceKm(tokyoLat, tokyoLng, tokyoLat, tokyoLng))
}

func TestDistanceKm_Symmetric(t *testing.T) {
	ab := geomath.DistanceKm(tokyoLat, tokyoLng, osakaLat, osakaLng)
	ba := geomath.DistanceKm(osakaLat, osakaLng, tokyoLat, tokyoLng)
	assert.InDelta(t, ab, ba, 1e-9)
}

func TestDistanceKm_TokyoOsaka(t *testing.T) {
	d := geomath.DistanceKm(tokyoLat, tokyoLng, osakaLat, osakaLng)
	assert.InDelta(t, 400, d, 10)
}

func TestDistanceKm_TriangleInequality(t *testing.T) {
	// Tokyo, Osaka and Sapporo
	sapLat, sapLng := 43.0618, 141.3545

	ab := geomath.DistanceKm(tokyoLat, tokyoLng, osakaLat, osakaLng)
	bc := geomath.DistanceKm(osakaLat, osakaLng, sapLat, sapLng)
	ac := geomath.DistanceKm(tokyoLat, tokyoLng, sapLat, sapLng)

	assert.LessOrEqual(t, ac, ab+bc+1e-9)
}

func TestBearingDeg_Range(t *testing.T) {
	points := [][4]float64{
		{tokyoLat, tokyoLng, osakaLat, osakaLng},
		{osakaLat, osakaLng, tokyoLat, tokyoLng},
		{0, 0, -45, -170},
		{51.5, -0.1, 35.6762, 139.6503},
		{10, 10, 10, 10.0001},
		{89, 0, -89, 180},
	}
	for _, p := range points {
		b := geomath.BearingDeg(p[0], p[1], p[2], p[3])
		assert.GreaterOrEqual(t, b, 0.0)
		assert.Less(t, b, 360.0)
	}
}

func TestBearingDeg_CardinalDirections(t *testing.T) {
	// Due north along a meridian.
	assert.InDelta(t, 0, geomath.BearingDeg(10, 20, 11, 20), 0.01)
	// Due south.
	assert.InDelta(t, 180, geomath.BearingDeg(11, 20, 10, 20), 0.01)
	// Due east on the equator.
	assert.InDelta(t, 90, geomath.BearingDeg(0, 20, 0, 21), 0.01)
	// Due west on the equator.
	assert.InDelta(t, 270, geomath.BearingDeg(0, 21, 0, 20), 0.01)
}

func TestBearingDeg_NotSymmetric(t *testing.T) {
	ab := geomath.BearingDeg(tokyoLat, tokyoLng, osakaLat, osakaLng)
	ba := geomath.BearingDeg(osakaLat, osakaLng, tokyoLat, tokyoLng)
	assert.NotEqual(t, ab, ba)
}

func TestCompassLabel(t *testing.T) {
	cases := []struct {
		deg  float64
		want string
	}{
		{0, "N"},
		{10, "N"},
		{45, "NE"},
		{90, "E"},
		{135, "SE"},
		{180, "S"},
		{225, "SW"},
		{270, "W"},
		{315, "NW"},
		{350, "N"},
		{359.9, "N"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, geomath.CompassLabel(tc.deg), "deg=%v", tc.deg)
	}
}

func TestCompassLabel_AlwaysOneOfEight(t *testing.T) {
	valid := map[string]bool{
		"N": true, "NE": true, "E": true, "SE": true,
		"S": true, "SW": true, "W": true, "NW": true,
	}
	for deg := 0.0; deg < 360; deg += 0.5 {
		label := geomath.CompassLabel(deg)
		require.True(t, valid[label], "deg=%v produced %q", deg, label)
	}
}

func TestNeedleAngle(t *testing.T) {
	heading := 90.0
	assert.InDelta(t, 30, geomath.NeedleAngle(120, &heading), 1e-9)

	// Wraps past north.
	heading = 200
	assert.InDelta(t, 280, geomath.NeedleAngle(120, &heading), 1e-9)

	// No heading: bearing passes through unchanged.
	assert.InDelta(t, 120, geomath.NeedleAngle(120, nil), 1e-9)
}

func TestNormalizeHeading_Webkit(t *testing.T) {
	// webkitCompassHeading is already clockwise from north.
	assert.InDelta(t, 90, geomath.NormalizeHeading(90, true), 1e-9)
	assert.InDelta(t, 0, geomath.NormalizeHeading(360, true), 1e-9)
}

func TestNormalizeHeading_Alpha(t *testing.T) {
	// Raw alpha counts counterclockwise, so alpha=90 is 270 clockwise from north.
	assert.InDelta(t, 270, geomath.NormalizeHeading(90, false), 1e-9)
	assert.InDelta(t, 0, geomath.NormalizeHeading(0, false), 1e-9)
	assert.InDelta(t, 90, geomath.NormalizeHeading(270, false), 1e-9)
}

func TestNormalizeHeading_OutputRange(t *testing.T) {
	for v := -720.0; v <= 720; v += 37.3 {
		for _, webkit := range []bool{true, false} {
			h := geomath.NormalizeHeading(v, webkit)
			require.GreaterOrEqual(t, h, 0.0)
			require.Less(t, h, 360.0)
			require.False(t, math.IsNaN(h))
		}
	}
}
