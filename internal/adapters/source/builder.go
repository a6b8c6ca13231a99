package source

import (
	"fmt"
	"log/slog"

	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/ports/output"
	"github.com/jobrunner/tarantula/internal/spatial"
)

// BuildOptions controls how features are turned into region indexes.
type BuildOptions struct {
	Debug     bool   // Send the edges of invalid rings to the logger
	DebugName string // Log every accepted vertex of regions with this name
	Strict    bool   // Fail the load on the first rejected ring
}

// Builder commits region features into a region index.
type Builder struct {
	opts    BuildOptions
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// NewBuilder creates a new builder.
func NewBuilder(opts BuildOptions, metrics output.MetricsCollector, logger *slog.Logger) *Builder {
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	return &Builder{opts: opts, metrics: metrics, logger: logger}
}

// layerBuilder accumulates the regions of one layer.
type layerBuilder struct {
	*Builder
	path    string
	logger  *slog.Logger
	index   *spatial.Index
	regions []domain.RegionInfo
	extent  domain.Extent
	reject  int
}

func (b *Builder) begin(path string) *layerBuilder {
	return &layerBuilder{
		Builder: b,
		path:    path,
		logger:  b.logger.With("path", path),
		index:   spatial.NewIndex(),
		extent:  domain.EmptyExtent(),
	}
}

// add commits one feature. Rings that fail validation are skipped; features
// left without an outer loop are dropped and do not consume an id.
func (lb *layerBuilder) add(f domain.RegionFeature) error {
	polygon := spatial.NewPolygon()
	watch := lb.opts.DebugName != "" && f.Info.Name == lb.opts.DebugName

	for ringIndex, ring := range f.Rings {
		cleaned := CleanRing(ring.Points)
		if cleaned == nil {
			continue
		}
		points := OrientRing(cleaned.Points(), ring.Outer)

		if watch {
			for i, p := range points {
				lb.logger.Debug("ring vertex",
					"name", f.Info.Name, "ring", ringIndex, "vertex", i, "point", p.String())
			}
		}

		var sink spatial.DebugSink
		if lb.opts.Debug {
			sink = spatial.SlogSink{Logger: lb.logger.With("name", f.Info.Name, "ring", ringIndex)}
		}

		loop, err := spatial.BuildLoop(points, ring.Outer, sink)
		if err != nil {
			kind := spatial.KindOf(err)
			if kind == spatial.TooFewVertices {
				continue
			}
			lb.reject++
			lb.metrics.IncLoopRejected(kind.String())
			lb.logger.Warn("rejected ring",
				"record", f.Record, "name", f.Info.Name, "ring", ringIndex,
				"kind", kind.String(), "error", err)
			if lb.opts.Strict {
				return err
			}
			continue
		}

		for _, p := range points {
			lb.extent.Extend(p.Lng, p.Lat)
		}
		polygon.Add(loop)
	}

	if polygon.NumLoops() == 0 {
		lb.logger.Debug("region has no valid rings", "record", f.Record, "name", f.Info.Name)
		return nil
	}

	id, err := lb.index.Add(polygon)
	if err != nil {
		lb.logger.Warn("region not committed", "record", f.Record, "name", f.Info.Name, "error", err)
		if lb.opts.Strict {
			return err
		}
		return nil
	}
	if id != len(lb.regions) {
		return fmt.Errorf("region id %d out of sequence, expected %d", id, len(lb.regions))
	}
	lb.regions = append(lb.regions, f.Info)

	if lb.opts.Debug {
		lb.logger.Debug("region committed",
			"record", f.Record, "name", f.Info.Name, "id", id, "rings", len(f.Rings))
	}
	return nil
}

func (lb *layerBuilder) result() *output.LoadedLayer {
	return &output.LoadedLayer{
		Index:    lb.index,
		Regions:  lb.regions,
		Rejected: lb.reject,
		Extent:   lb.extent,
	}
}

// Build commits features into a fresh index.
func (b *Builder) Build(path string, features []domain.RegionFeature) (*output.LoadedLayer, error) {
	lb := b.begin(path)
	for _, f := range features {
		if err := lb.add(f); err != nil {
			return nil, &domain.LoadError{Path: path, Record: f.Record, Err: err}
		}
	}
	return lb.result(), nil
}
