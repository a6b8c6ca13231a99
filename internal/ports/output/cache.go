package output

import (
	"context"

	"github.com/jobrunner/tarantula/internal/domain"
)

// ResultCache defines the secondary port for caching search responses.
// Keys are built by the search service and identify both the layer set and
// the coordinate.
type ResultCache interface {
	// Get returns a cached response, if any.
	Get(ctx context.Context, key string) (*domain.SearchResponse, bool, error)

	// Set stores a response.
	Set(ctx context.Context, key string, resp *domain.SearchResponse) error

	// Flush drops every cached response, e.g. after layers were reloaded.
	Flush(ctx context.Context) error
}

// NoOpCache is a ResultCache that never holds anything.
type NoOpCache struct{}

// Get implements ResultCache.
func (NoOpCache) Get(_ context.Context, _ string) (*domain.SearchResponse, bool, error) {
	return nil, false, nil
}

// Set implements ResultCache.
func (NoOpCache) Set(_ context.Context, _ string, _ *domain.SearchResponse) error {
	return nil
}

// Flush implements ResultCache.
func (NoOpCache) Flush(_ context.Context) error {
	return nil
}
