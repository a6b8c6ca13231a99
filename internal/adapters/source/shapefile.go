package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/ports/output"
)

// Shapefile reads polygon shapefiles. Ring roles follow the shapefile
// convention: clockwise rings are shells, counter-clockwise rings are holes.
type Shapefile struct {
	builder *Builder
}

// NewShapefile creates a new shapefile source.
func NewShapefile(builder *Builder) *Shapefile {
	return &Shapefile{builder: builder}
}

// Supports implements output.LayerSource.
func (s *Shapefile) Supports(format domain.LayerFormat) bool {
	return format == domain.FormatShapefile
}

// Load implements output.LayerSource.
func (s *Shapefile) Load(ctx context.Context, path string, spec domain.LayerSpec) (*output.LoadedLayer, error) {
	features, err := s.Read(ctx, path, spec)
	if err != nil {
		return nil, err
	}
	return s.builder.Build(path, features)
}

// Read returns the polygon records of the shapefile as region features.
// A record whose configured attributes are all empty fails the read.
func (s *Shapefile) Read(ctx context.Context, path string, spec domain.LayerSpec) ([]domain.RegionFeature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Record: -1, Err: err}
	}
	defer func() { _ = reader.Close() }()

	dec, err := attributeDecoder(path, spec.Encoding)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Record: -1, Err: err}
	}

	columns := make(map[string]int)
	for i, f := range reader.Fields() {
		columns[strings.ToUpper(f.String())] = i
	}

	nameAttr := spec.RegionName()
	var features []domain.RegionFeature
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, shape := reader.Shape()
		parts, points, ok := polygonParts(shape)
		if !ok {
			continue
		}

		attrs := make(map[string]string, len(spec.Attributes))
		for _, name := range spec.Attributes {
			col, ok := columns[strings.ToUpper(name)]
			if !ok {
				continue
			}
			value, err := decodeAttribute(dec, reader.ReadAttribute(n, col))
			if err != nil {
				return nil, &domain.LoadError{Path: path, Record: n, Err: fmt.Errorf("decoding %s: %w", name, err)}
			}
			attrs[name] = value
		}

		info := domain.RegionInfo{
			Level:      spec.Level,
			Name:       attrs[nameAttr],
			Attributes: attrs,
		}
		if len(spec.Attributes) > 0 && !info.HasAttributes() {
			return nil, &domain.LoadError{Path: path, Record: n, Err: domain.ErrMissingAttributes}
		}

		features = append(features, domain.RegionFeature{
			Record: n,
			Info:   info,
			Rings:  shapefileRings(parts, points),
		})
	}
	if err := reader.Err(); err != nil {
		return nil, &domain.LoadError{Path: path, Record: -1, Err: err}
	}

	return features, nil
}

func polygonParts(shape shp.Shape) ([]int32, []shp.Point, bool) {
	switch p := shape.(type) {
	case *shp.Polygon:
		return p.Parts, p.Points, true
	case *shp.PolygonZ:
		return p.Parts, p.Points, true
	case *shp.PolygonM:
		return p.Parts, p.Points, true
	}
	return nil, nil, false
}

func shapefileRings(parts []int32, points []shp.Point) []domain.Ring {
	rings := make([]domain.Ring, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			continue
		}
		ring := ringFromOrb(shpRing(points[start:end]))
		rings = append(rings, domain.Ring{Points: ring, Outer: IsClockwise(ring)})
	}
	return rings
}

// attributeDecoder resolves the attribute character set from the configured
// name or, failing that, the .cpg sidecar. A nil decoder means UTF-8.
func attributeDecoder(path, charset string) (*encoding.Decoder, error) {
	if charset == "" {
		cpg := strings.TrimSuffix(path, filepath.Ext(path)) + ".cpg"
		if data, err := os.ReadFile(cpg); err == nil { //#nosec G304 -- sidecar of a configured layer file
			charset = strings.TrimSpace(string(data))
		}
	}
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return nil, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("attribute encoding %q: %w", charset, err)
	}
	return enc.NewDecoder(), nil
}

func decodeAttribute(dec *encoding.Decoder, raw string) (string, error) {
	value := strings.TrimRight(raw, "\x00 ")
	if dec == nil {
		return value, nil
	}
	return dec.String(value)
}

func shpRing(points []shp.Point) orb.Ring {
	ring := make(orb.Ring, len(points))
	for i, p := range points {
		ring[i] = orb.Point{p.X, p.Y}
	}
	return ring
}
