package output

import (
	"context"

	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/spatial"
)

// LayerSource defines the secondary port for reading a layer into a region
// index.
type LayerSource interface {
	// Load reads every region of the layer at path and commits it into a
	// fresh index.
	Load(ctx context.Context, path string, spec domain.LayerSpec) (*LoadedLayer, error)

	// Supports reports whether the source can read the given format.
	Supports(format domain.LayerFormat) bool
}

// LoadedLayer is an immutable region index together with the description of
// every committed region. Regions[id] describes the polygon with that id.
type LoadedLayer struct {
	Index    *spatial.Index      // Committed polygons
	Regions  []domain.RegionInfo // Region descriptions by id
	Rejected int                 // Rings rejected during loop construction
	Extent   domain.Extent       // Bounding box of all committed rings
}

// Region returns the description of the region with the given id.
func (l *LoadedLayer) Region(id int) (*domain.RegionInfo, bool) {
	if id < 0 || id >= len(l.Regions) {
		return nil, false
	}
	return &l.Regions[id], true
}
