// Package domain contains the core business entities and value objects.
package domain

import (
	"fmt"
	"math"
)

// Coordinate is a WGS84 query coordinate in degrees.
type Coordinate struct {
	Lon float64 // Longitude
	Lat float64 // Latitude
}

// NewCoordinate creates a coordinate from longitude and latitude.
func NewCoordinate(lon, lat float64) Coordinate {
	return Coordinate{Lon: lon, Lat: lat}
}

// Validate checks that the coordinate lies within WGS84 bounds.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return &ValidationError{
			Field:      "lon",
			Value:      c.Lon,
			Constraint: "[-180, 180]",
			Message:    "longitude must be between -180 and 180",
		}
	}
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return &ValidationError{
			Field:      "lat",
			Value:      c.Lat,
			Constraint: "[-90, 90]",
			Message:    "latitude must be between -90 and 90",
		}
	}
	return nil
}

// String returns a string representation of the coordinate.
func (c Coordinate) String() string {
	return fmt.Sprintf("POINT(%f %f)", c.Lon, c.Lat)
}

// CacheKey returns a stable key for result caching.
func (c Coordinate) CacheKey() string {
	return fmt.Sprintf("%.7f:%.7f", c.Lon, c.Lat)
}

// Extent represents a bounding box in degrees.
type Extent struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// EmptyExtent returns an extent that contains nothing and grows with Extend.
func EmptyExtent() Extent {
	return Extent{
		MinLon: math.Inf(1),
		MinLat: math.Inf(1),
		MaxLon: math.Inf(-1),
		MaxLat: math.Inf(-1),
	}
}

// Extend grows the extent to include the given point.
func (e *Extent) Extend(lon, lat float64) {
	e.MinLon = math.Min(e.MinLon, lon)
	e.MinLat = math.Min(e.MinLat, lat)
	e.MaxLon = math.Max(e.MaxLon, lon)
	e.MaxLat = math.Max(e.MaxLat, lat)
}

// Contains checks if a coordinate is within the extent.
func (e Extent) Contains(c Coordinate) bool {
	return c.Lon >= e.MinLon && c.Lon <= e.MaxLon && c.Lat >= e.MinLat && c.Lat <= e.MaxLat
}

// IsValid checks if the extent has valid dimensions.
func (e Extent) IsValid() bool {
	return e.MinLon <= e.MaxLon && e.MinLat <= e.MaxLat
}

// Width returns the width of the extent.
func (e Extent) Width() float64 {
	return math.Abs(e.MaxLon - e.MinLon)
}

// Height returns the height of the extent.
func (e Extent) Height() float64 {
	return math.Abs(e.MaxLat - e.MinLat)
}

// Center returns the center coordinate of the extent.
func (e Extent) Center() Coordinate {
	return Coordinate{
		Lon: (e.MinLon + e.MaxLon) / 2,
		Lat: (e.MinLat + e.MaxLat) / 2,
	}
}
