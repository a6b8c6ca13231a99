package spatial

import (
	"fmt"
	"log/slog"

	"github.com/golang/geo/s2"
)

// DebugSink receives the edges of a ring that failed validation.
type DebugSink interface {
	Edge(i int, from, to LngLat)
}

// SlogSink writes rejected ring edges to a structured logger at debug level.
type SlogSink struct {
	Logger *slog.Logger
}

// Edge implements DebugSink.
func (s SlogSink) Edge(i int, from, to LngLat) {
	if s.Logger == nil {
		return
	}
	s.Logger.Debug("invalid loop edge",
		"edge", i,
		"from", from.String(),
		"to", to.String(),
	)
}

// Loop is a validated, oriented ring on the unit sphere.
//
// A Loop is built by BuildLoop and then handed to Polygon.Add, which takes
// ownership of its vertices. After that the Loop is spent.
type Loop struct {
	loop  *s2.Loop
	outer bool
}

// BuildLoop validates points as a ring and returns the resulting loop.
//
// Outer rings must turn clockwise (curvature <= 0) and inner rings
// counter-clockwise (curvature >= 0). The ring is implicitly closed; the
// first point must not be repeated at the end. When debug is non-nil and the
// ring is structurally invalid, every edge of the input is sent to it before
// the error is returned.
func BuildLoop(points []LngLat, outer bool, debug DebugSink) (*Loop, error) {
	if len(points) < 2 {
		return nil, &LoopError{Kind: TooFewVertices, Vertices: len(points)}
	}

	vertices := make([]s2.Point, len(points))
	for i, p := range points {
		vertices[i] = s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lng))
	}

	loop := s2.LoopFromPoints(vertices)
	if err := validateLoop(loop); err != nil {
		if debug != nil {
			for i := range points {
				debug.Edge(i, points[i], points[(i+1)%len(points)])
			}
		}
		return nil, &LoopError{Kind: Failure, Vertices: len(points), Err: err}
	}

	curvature := loop.TurningAngle()
	if outer && curvature > 0 {
		return nil, &LoopError{Kind: OuterCurvature, Vertices: len(points), Curvature: curvature}
	}
	if !outer && curvature < 0 {
		return nil, &LoopError{Kind: InnerCurvature, Vertices: len(points), Curvature: curvature}
	}

	return &Loop{loop: loop, outer: outer}, nil
}

// validateLoop runs the structural checks of s2.Loop and additionally
// rejects rings that are not simple: a vertex visited twice, or two
// non-adjacent edges that cross or touch.
func validateLoop(loop *s2.Loop) error {
	if err := loop.Validate(); err != nil {
		return err
	}

	n := loop.NumVertices()
	seen := make(map[s2.Point]int, n)
	for i, v := range loop.Vertices() {
		if j, ok := seen[v]; ok {
			return fmt.Errorf("vertex %d repeats vertex %d", i, j)
		}
		seen[v] = i
	}

	index := s2.NewShapeIndex()
	index.Add(loop)
	query := s2.NewCrossingEdgeQuery(index)

	for i := 0; i < n; i++ {
		edge := loop.Edge(i)
		for _, j := range query.Crossings(edge.V0, edge.V1, loop, s2.CrossingTypeAll) {
			if j == i || j == (i+1)%n || j == (i+n-1)%n {
				continue
			}
			return fmt.Errorf("edge %d crosses edge %d", i, j)
		}
	}
	return nil
}

// Outer reports whether the loop bounds an outer shell.
func (l *Loop) Outer() bool {
	return l.outer
}

// Moved reports whether the loop has been handed to a polygon.
func (l *Loop) Moved() bool {
	return l.loop == nil
}

// NumVertices returns the vertex count, or 0 once the loop has been moved.
func (l *Loop) NumVertices() int {
	if l.loop == nil {
		return 0
	}
	return l.loop.NumVertices()
}

// Curvature returns the loop's turning angle in radians.
func (l *Loop) Curvature() float64 {
	if l.loop == nil {
		return 0
	}
	return l.loop.TurningAngle()
}

// Vertices returns the loop's vertices in degrees.
func (l *Loop) Vertices() []LngLat {
	if l.loop == nil {
		return nil
	}
	return loopVertices(l.loop, nil)
}

// take transfers the underlying s2 loop to the caller.
func (l *Loop) take() *s2.Loop {
	loop := l.loop
	l.loop = nil
	return loop
}

func loopVertices(loop *s2.Loop, dst []LngLat) []LngLat {
	for _, v := range loop.Vertices() {
		ll := s2.LatLngFromPoint(v)
		dst = append(dst, LngLat{Lng: ll.Lng.Degrees(), Lat: ll.Lat.Degrees()})
	}
	return dst
}
