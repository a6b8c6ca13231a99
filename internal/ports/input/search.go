// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/tarantula/internal/domain"
)

// SearchService defines the primary port for region lookups.
type SearchService interface {
	// Search resolves a coordinate against the hierarchy, district and
	// district_any layers and returns matches ordered by level.
	Search(ctx context.Context, coord domain.Coordinate) (*domain.SearchResponse, error)

	// SearchLayer resolves a coordinate against a single layer.
	SearchLayer(ctx context.Context, layerID string, coord domain.Coordinate, withBoundary bool) (*domain.LayerSearchResult, error)
}

// LayerRegistry defines the primary port for layer management.
type LayerRegistry interface {
	// ListLayers returns all registered layers.
	ListLayers(ctx context.Context) ([]domain.Layer, error)

	// GetLayer returns a specific layer by ID.
	GetLayer(ctx context.Context, id string) (*domain.Layer, error)

	// GetLayerStatus returns the status of a layer.
	GetLayerStatus(ctx context.Context, id string) (domain.LayerStatus, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy       bool              // Overall health status
	Ready         bool              // Ready to accept requests
	LayersLoaded  int               // Number of registered layers
	LayersReady   int               // Number of ready layers
	RegionsLoaded int               // Number of regions across ready layers
	Components    map[string]string // Component statuses
}
