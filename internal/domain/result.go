package domain

import (
	"sort"
	"time"

	"github.com/jobrunner/tarantula/internal/spatial"
)

// Match is a region containing the queried coordinate.
type Match struct {
	District   string            `json:"district"`          // District of the matched layer
	Level      int               `json:"level"`             // Administrative level
	Name       string            `json:"name"`              // Region name
	LayerID    string            `json:"layer_id"`          // Layer that produced the match
	RegionID   int               `json:"region_id"`         // Id of the region within the layer index
	Attributes map[string]string `json:"attributes"`        // Region attributes
	LngLats    []spatial.LngLat  `json:"lnglats,omitempty"` // Boundary vertices, only for district_any layers or on request
}

// HasBoundary returns true if boundary vertices are attached.
func (m *Match) HasBoundary() bool {
	return len(m.LngLats) > 0
}

// SearchResponse represents the full result of a hierarchical search.
type SearchResponse struct {
	Coordinate     Coordinate    // Queried coordinate
	Matches        []Match       // Matches ordered by level
	ProcessingTime time.Duration // Total processing time
	Cached         bool          // Served from the result cache
}

// AddMatch adds a match to the response.
func (r *SearchResponse) AddMatch(m Match) {
	r.Matches = append(r.Matches, m)
}

// SortByLevel orders matches by ascending level. Matches of equal level keep
// their discovery order.
func (r *SearchResponse) SortByLevel() {
	sort.SliceStable(r.Matches, func(i, j int) bool {
		return r.Matches[i].Level < r.Matches[j].Level
	})
}

// HasMatches returns true if any region matched.
func (r *SearchResponse) HasMatches() bool {
	return len(r.Matches) > 0
}

// LayerSearchResult is the result of searching a single layer.
type LayerSearchResult struct {
	LayerID   string           // Layer identifier
	RegionID  int              // Matched region id, spatial.NoMatch when none
	Region    *RegionInfo      // Matched region, nil when none
	LngLats   []spatial.LngLat // Boundary vertices when requested
	QueryTime time.Duration    // Query execution time
}

// Found returns true if a region matched.
func (r *LayerSearchResult) Found() bool {
	return r.RegionID != spatial.NoMatch
}
