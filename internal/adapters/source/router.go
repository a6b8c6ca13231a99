package source

import (
	"context"
	"fmt"

	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/ports/output"
)

// Router dispatches a layer load to the first source supporting the format
// of the layer path.
type Router struct {
	sources []output.LayerSource
}

// NewRouter creates a router over the given sources.
func NewRouter(sources ...output.LayerSource) *Router {
	return &Router{sources: sources}
}

// Supports implements output.LayerSource.
func (r *Router) Supports(format domain.LayerFormat) bool {
	for _, s := range r.sources {
		if s.Supports(format) {
			return true
		}
	}
	return false
}

// Load implements output.LayerSource.
func (r *Router) Load(ctx context.Context, path string, spec domain.LayerSpec) (*output.LoadedLayer, error) {
	format, err := domain.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	for _, s := range r.sources {
		if s.Supports(format) {
			return s.Load(ctx, path, spec)
		}
	}
	return nil, fmt.Errorf("%s: %w", format, domain.ErrUnsupportedFormat)
}
