// Package spatial implements the region index: validated loops on the unit
// sphere, polygons assembled from them, and point-containment queries over
// committed polygons.
//
// The package is not safe for concurrent mutation. Callers that share an
// Index between goroutines must serialize Add against Search.
package spatial

import (
	"fmt"
	"math"
)

// LngLat is a coordinate in degrees.
type LngLat struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// UnsetLngLat marks a coordinate that has not been assigned.
// It is never a valid coordinate.
var UnsetLngLat = LngLat{Lng: math.MaxFloat64, Lat: math.MaxFloat64}

// IsUnset reports whether the coordinate is the unset sentinel.
func (p LngLat) IsUnset() bool {
	return p.Lng == math.MaxFloat64 && p.Lat == math.MaxFloat64
}

// String formats the coordinate with seven decimals.
func (p LngLat) String() string {
	return fmt.Sprintf("%.7f,%.7f", p.Lng, p.Lat)
}

// LngLats is an ordered, growable sequence of coordinates used while a ring
// is being authored.
type LngLats struct {
	points []LngLat
}

// NewLngLats returns an empty container with room for n points.
func NewLngLats(n int) *LngLats {
	return &LngLats{points: make([]LngLat, 0, n)}
}

// Add appends a point.
func (l *LngLats) Add(lng, lat float64) {
	l.points = append(l.points, LngLat{Lng: lng, Lat: lat})
}

// PopBack removes the last point. It does nothing unless the container holds
// more than three points.
func (l *LngLats) PopBack() {
	if len(l.points) > 3 {
		l.points = l.points[:len(l.points)-1]
	}
}

// Len returns the number of points.
func (l *LngLats) Len() int {
	return len(l.points)
}

// At returns the point at position i.
func (l *LngLats) At(i int) LngLat {
	return l.points[i]
}

// Last returns the last point, or UnsetLngLat when empty.
func (l *LngLats) Last() LngLat {
	if len(l.points) == 0 {
		return UnsetLngLat
	}
	return l.points[len(l.points)-1]
}

// Points returns a copy of the stored points.
func (l *LngLats) Points() []LngLat {
	out := make([]LngLat, len(l.points))
	copy(out, l.points)
	return out
}
