package source

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/jobrunner/tarantula/internal/domain"
)

var errNotPolygonal = errors.New("geometry is not polygonal")

// ringsFromGeometry flattens a polygonal geometry into rings. The first ring
// of every polygon is its shell, the rest are holes.
func ringsFromGeometry(g orb.Geometry) ([]domain.Ring, error) {
	switch geom := g.(type) {
	case orb.Polygon:
		return polygonRings(geom, nil), nil
	case orb.MultiPolygon:
		var rings []domain.Ring
		for _, p := range geom {
			rings = polygonRings(p, rings)
		}
		return rings, nil
	case orb.Collection:
		var rings []domain.Ring
		for _, member := range geom {
			r, err := ringsFromGeometry(member)
			if err != nil {
				continue
			}
			rings = append(rings, r...)
		}
		if len(rings) == 0 {
			return nil, errNotPolygonal
		}
		return rings, nil
	case nil:
		return nil, errNotPolygonal
	default:
		return nil, fmt.Errorf("%s: %w", g.GeoJSONType(), errNotPolygonal)
	}
}

func polygonRings(p orb.Polygon, dst []domain.Ring) []domain.Ring {
	for i, r := range p {
		dst = append(dst, domain.Ring{Points: ringFromOrb(r), Outer: i == 0})
	}
	return dst
}
