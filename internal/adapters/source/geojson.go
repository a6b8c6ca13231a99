package source

import (
	"context"
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/ports/output"
)

// GeoJSON reads Polygon and MultiPolygon features from a GeoJSON feature
// collection. The first ring of every polygon is its shell regardless of
// winding.
type GeoJSON struct {
	builder *Builder
}

// NewGeoJSON creates a new GeoJSON source.
func NewGeoJSON(builder *Builder) *GeoJSON {
	return &GeoJSON{builder: builder}
}

// Supports implements output.LayerSource.
func (g *GeoJSON) Supports(format domain.LayerFormat) bool {
	return format == domain.FormatGeoJSON
}

// Load implements output.LayerSource.
func (g *GeoJSON) Load(ctx context.Context, path string, spec domain.LayerSpec) (*output.LoadedLayer, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path from layer catalog
	if err != nil {
		return nil, &domain.LoadError{Path: path, Record: -1, Err: err}
	}

	features, err := g.Decode(ctx, data, spec)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Record: -1, Err: err}
	}
	return g.builder.Build(path, features)
}

// Decode parses a feature collection into region features. Features without
// polygonal geometry are skipped.
func (g *GeoJSON) Decode(ctx context.Context, data []byte, spec domain.LayerSpec) ([]domain.RegionFeature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing feature collection: %w", err)
	}

	nameAttr := spec.RegionName()
	features := make([]domain.RegionFeature, 0, len(fc.Features))
	for i, f := range fc.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rings, err := ringsFromGeometry(f.Geometry)
		if err != nil {
			continue
		}

		attrs := make(map[string]string, len(spec.Attributes))
		for _, name := range spec.Attributes {
			if v, ok := f.Properties[name]; ok && v != nil {
				attrs[name] = fmt.Sprint(v)
			}
		}

		features = append(features, domain.RegionFeature{
			Record: i,
			Info: domain.RegionInfo{
				Level:      spec.Level,
				Name:       attrs[nameAttr],
				Attributes: attrs,
			},
			Rings: rings,
		})
	}
	return features, nil
}
