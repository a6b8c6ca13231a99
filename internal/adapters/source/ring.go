// Package source reads region layers from Shapefile, GeoJSON, GeoPackage and
// PostGIS and commits them into region indexes.
package source

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/jobrunner/tarantula/internal/spatial"
)

// samePointTolerance is the per-axis distance in degrees under which two
// authored vertices are considered the same point.
const samePointTolerance = 1e-7

// minRingPoints is the smallest ring kept after cleaning.
const minRingPoints = 3

func samePoint(a, b spatial.LngLat) bool {
	if a.IsUnset() || b.IsUnset() {
		return false
	}
	return math.Abs(a.Lng-b.Lng) <= samePointTolerance && math.Abs(a.Lat-b.Lat) <= samePointTolerance
}

// CleanRing removes the closing vertex, repeated vertices and back-tracking
// spikes from an authored ring. The result is nil when fewer than three
// points survive.
//
// A point is dropped when it repeats the previous accepted point, repeats
// the first point, or already occurs anywhere in the ring. A point that
// returns to the point before the previous one removes the previous point
// as well. The last input point is always treated as the closing vertex.
func CleanRing(points []spatial.LngLat) *spatial.LngLats {
	out := spatial.NewLngLats(len(points))
	seen := make([]spatial.LngLat, 0, len(points))

	first, prev, pprev := spatial.UnsetLngLat, spatial.UnsetLngLat, spatial.UnsetLngLat
	for i, p := range points {
		keep := i == 0
		if i > 0 {
			keep = !samePoint(p, prev)
			if samePoint(p, first) {
				keep = false
			}
			if samePoint(p, pprev) {
				keep = false
				out.PopBack()
			}
		}
		if !keep || i == len(points)-1 {
			continue
		}

		pprev, prev = prev, p
		if i == 0 {
			first = p
		}
		if containsPoint(seen, p) {
			continue
		}
		out.Add(p.Lng, p.Lat)
		seen = append(seen, p)
	}

	if out.Len() < minRingPoints {
		return nil
	}
	return out
}

func containsPoint(points []spatial.LngLat, p spatial.LngLat) bool {
	for _, q := range points {
		if samePoint(p, q) {
			return true
		}
	}
	return false
}

// OrientRing returns the points ordered clockwise for outer rings and
// counter-clockwise for holes. Degenerate rings are returned unchanged.
func OrientRing(points []spatial.LngLat, outer bool) []spatial.LngLat {
	if len(points) < minRingPoints {
		return points
	}
	ring := make(orb.Ring, len(points))
	for i, p := range points {
		ring[i] = orb.Point{p.Lng, p.Lat}
	}

	want := orb.CCW
	if outer {
		want = orb.CW
	}
	if o := ring.Orientation(); o == 0 || o == want {
		return points
	}

	ring.Reverse()
	out := make([]spatial.LngLat, len(ring))
	for i, p := range ring {
		out[i] = spatial.LngLat{Lng: p[0], Lat: p[1]}
	}
	return out
}

// IsClockwise reports whether the ring is wound clockwise in the lon/lat
// plane. Shapefiles mark outer rings this way.
func IsClockwise(points []spatial.LngLat) bool {
	if len(points) < minRingPoints {
		return false
	}
	ring := make(orb.Ring, len(points))
	for i, p := range points {
		ring[i] = orb.Point{p.Lng, p.Lat}
	}
	return ring.Orientation() == orb.CW
}

func ringFromOrb(r orb.Ring) []spatial.LngLat {
	points := make([]spatial.LngLat, len(r))
	for i, p := range r {
		points[i] = spatial.LngLat{Lng: p[0], Lat: p[1]}
	}
	return points
}
