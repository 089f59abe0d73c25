// Package geomath holds the pure great-circle and compass math used by the
// proximity pipeline. All angles are degrees unless noted.
package geomath

import "math"

const earthRadiusKm = 6371

var compassLabels = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceKm returns the haversine great-circle distance between two points.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	rLat1 := toRad(lat1)
	rLat2 := toRad(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(rLat1)*math.Cos(rLat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// BearingDeg returns the initial bearing from point 1 to point 2,
// normalized to [0,360), 0 = true north, clockwise.
func BearingDeg(lat1, lng1, lat2, lng2 float64) float64 {
	rLat1 := toRad(lat1)
	rLat2 := toRad(lat2)
	dLng := toRad(lng2 - lng1)

	y := math.Sin(dLng) * math.Cos(rLat2)
	x := math.Cos(rLat1)*math.Sin(rLat2) - math.Sin(rLat1)*math.Cos(rLat2)*math.Cos(dLng)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// CompassLabel maps a bearing to one of the 8 compass points.
func CompassLabel(deg float64) string {
	idx := int(math.Round(deg/45)) % 8
	return compassLabels[idx]
}

// NeedleAngle converts a north-relative bearing into a screen-relative needle
// rotation when a live device heading is available. Without a heading the
// bearing is returned unchanged and the needle stays north-relative.
func NeedleAngle(bearingDeg float64, deviceHeadingDeg *float64) float64 {
	if deviceHeadingDeg == nil {
		return bearingDeg
	}
	return math.Mod(bearingDeg-*deviceHeadingDeg+360, 360)
}

// NormalizeHeading unifies the two platform orientation conventions into
// degrees clockwise from north. webkitCompassHeading is already clockwise;
// a raw deviceorientation alpha counts counterclockwise.
func NormalizeHeading(value float64, webkit bool) float64 {
	if webkit {
		return math.Mod(math.Mod(value, 360)+360, 360)
	}
	return math.Mod(math.Mod(360-value, 360)+360, 360)
}
