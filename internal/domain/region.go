package domain

import (
	"strconv"

	"github.com/jobrunner/tarantula/internal/spatial"
)

// RegionInfo describes a region committed into a layer index.
type RegionInfo struct {
	District   string            // District the layer belongs to
	Level      int               // Administrative level
	Name       string            // Region name
	Attributes map[string]string // Configured attribute values
}

// GetAttribute returns an attribute value by key.
func (r *RegionInfo) GetAttribute(key string) (string, bool) {
	if r.Attributes == nil {
		return "", false
	}
	v, ok := r.Attributes[key]
	return v, ok
}

// GetIntAttribute returns an attribute parsed as int, or 0.
func (r *RegionInfo) GetIntAttribute(key string) int {
	v, ok := r.GetAttribute(key)
	if !ok {
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return i
}

// HasAttributes reports whether at least one attribute value is non-empty.
func (r *RegionInfo) HasAttributes() bool {
	for _, v := range r.Attributes {
		if v != "" {
			return true
		}
	}
	return false
}

// Ring is an authored polygon ring as read from a source.
type Ring struct {
	Points []spatial.LngLat // Vertices, possibly closed and with duplicates
	Outer  bool             // Outer shell or hole
}

// RegionFeature is a source-neutral region read from a layer.
type RegionFeature struct {
	Record int        // Record number within the source
	Info   RegionInfo // Descriptive data
	Rings  []Ring     // Boundary rings
}

// OuterRings returns the number of outer rings.
func (f *RegionFeature) OuterRings() int {
	n := 0
	for _, r := range f.Rings {
		if r.Outer {
			n++
		}
	}
	return n
}
