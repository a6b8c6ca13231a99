package spatial

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// NoMatch is the id reported when no polygon contains the query point.
const NoMatch = -1

// boundaryTolerance is the distance, in radians, under which a query point
// counts as lying on a polygon edge.
const boundaryTolerance = 1e-14

// SearchResult is the outcome of Index.SearchPolygon.
type SearchResult struct {
	ID       int      `json:"id"`
	Vertices []LngLat `json:"vertices,omitempty"`
}

// Found reports whether the search matched a polygon.
func (r SearchResult) Found() bool {
	return r.ID != NoMatch
}

// Index holds committed polygons and answers point-containment queries.
// Ids are assigned in commit order starting at 0 and are never reused.
type Index struct {
	shapes   *s2.ShapeIndex
	polygons []*s2.Polygon
	ids      map[s2.Shape]int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		shapes: s2.NewShapeIndex(),
		ids:    make(map[s2.Shape]int),
	}
}

// Add commits p and returns its id. Outer loops are inverted so that every
// loop encloses the region on its left, then the loops are assembled with
// nested-loop semantics: a point is inside when an odd number of loops
// contain it. The polygon is spent afterwards.
func (idx *Index) Add(p *Polygon) (int, error) {
	switch {
	case p == nil:
		return NoMatch, ErrEmptyPolygon
	case p.committed:
		return NoMatch, ErrPolygonCommitted
	case len(p.loops) == 0:
		return NoMatch, ErrEmptyPolygon
	case !p.HasOuter():
		return NoMatch, ErrNoOuterLoop
	}

	for i, loop := range p.loops {
		if p.outer[i] {
			loop.Invert()
		}
	}

	polygon := s2.PolygonFromLoops(p.loops)
	id := len(idx.polygons)
	idx.shapes.Add(polygon)
	idx.polygons = append(idx.polygons, polygon)
	idx.ids[polygon] = id

	p.loops = nil
	p.outer = nil
	p.committed = true
	return id, nil
}

// Len returns the number of committed polygons.
func (idx *Index) Len() int {
	return len(idx.polygons)
}

// Search returns the id of a polygon containing the point, or NoMatch.
// Points on an edge or vertex are outside. When several polygons contain
// the point, which one is reported is unspecified.
func (idx *Index) Search(lng, lat float64) int {
	return idx.locate(lng, lat)
}

// SearchPolygon is like Search but also returns every vertex of every loop
// of the matched polygon, loops in stored order.
func (idx *Index) SearchPolygon(lng, lat float64) SearchResult {
	id := idx.locate(lng, lat)
	if id == NoMatch {
		return SearchResult{ID: NoMatch}
	}
	return SearchResult{
		ID:       id,
		Vertices: polygonVertices(idx.polygons[id]),
	}
}

// Boundary returns the vertices of the polygon with the given id, or nil.
func (idx *Index) Boundary(id int) []LngLat {
	if id < 0 || id >= len(idx.polygons) {
		return nil
	}
	return polygonVertices(idx.polygons[id])
}

// locate returns the id of the first containing polygon, or NoMatch.
func (idx *Index) locate(lng, lat float64) int {
	if len(idx.polygons) == 0 {
		return NoMatch
	}
	// A query carries iterator state, so each search gets its own.
	query := s2.NewContainsPointQuery(idx.shapes, s2.VertexModelOpen)
	point := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lng))
	shapes := query.ContainingShapes(point)
	if len(shapes) == 0 {
		return NoMatch
	}

	onEdge := idx.boundaryShapes(point)
	for _, shape := range shapes {
		if onEdge[shape] {
			continue
		}
		if id, ok := idx.ids[shape]; ok {
			return id
		}
	}
	return NoMatch
}

// boundaryShapes returns the polygons that have an edge passing through
// point. The open vertex model already excludes vertices; this extends the
// exclusion to edge interiors.
func (idx *Index) boundaryShapes(point s2.Point) map[s2.Shape]bool {
	opts := s2.NewClosestEdgeQueryOptions().
		IncludeInteriors(false).
		DistanceLimit(s1.ChordAngleFromAngle(s1.Angle(boundaryTolerance)))
	query := s2.NewClosestEdgeQuery(idx.shapes, opts)

	var out map[s2.Shape]bool
	for _, r := range query.FindEdges(s2.NewMinDistanceToPointTarget(point)) {
		if out == nil {
			out = make(map[s2.Shape]bool)
		}
		out[idx.shapes.Shape(r.ShapeID())] = true
	}
	return out
}

func polygonVertices(polygon *s2.Polygon) []LngLat {
	var out []LngLat
	for i := 0; i < polygon.NumLoops(); i++ {
		out = loopVertices(polygon.Loop(i), out)
	}
	return out
}
