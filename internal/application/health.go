package application

import (
	"context"

	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/ports/input"
)

var _ input.HealthChecker = (*HealthService)(nil)

// HealthService provides health check functionality.
type HealthService struct {
	registry *LayerRegistry
	checks   map[string]func(context.Context) error
}

// NewHealthService creates a new health service.
func NewHealthService(registry *LayerRegistry) *HealthService {
	return &HealthService{
		registry: registry,
		checks:   make(map[string]func(context.Context) error),
	}
}

// AddCheck registers a component check reported in the health details,
// e.g. the result cache.
func (s *HealthService) AddCheck(component string, check func(context.Context) error) {
	s.checks[component] = check
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true
}

// IsReady returns true if the service is ready to accept requests.
func (s *HealthService) IsReady(ctx context.Context) bool {
	layers, err := s.registry.ListLayers(ctx)
	if err != nil {
		return false
	}

	// Ready if at least one layer is ready
	for _, layer := range layers {
		if layer.IsReady() {
			return true
		}
	}

	// Also ready if no layers are configured (empty state)
	return len(layers) == 0
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	layers, _ := s.registry.ListLayers(ctx)

	ready := 0
	regions := 0
	for _, layer := range layers {
		if layer.IsReady() {
			ready++
			regions += layer.Regions
		}
	}

	components := map[string]string{
		"registry": "ok",
	}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			continue
		}
		components[name] = "ok"
	}

	return input.HealthDetails{
		Healthy:       s.IsHealthy(ctx),
		Ready:         s.IsReady(ctx),
		LayersLoaded:  len(layers),
		LayersReady:   ready,
		RegionsLoaded: regions,
		Components:    components,
	}
}

// LayerHealth contains health info for a single layer.
type LayerHealth struct {
	ID     string             `json:"id"`
	Status domain.LayerStatus `json:"status"`
	Ready  bool               `json:"ready"`
	Error  string             `json:"error,omitempty"`
}

// GetLayerHealth returns health info for all layers.
func (s *HealthService) GetLayerHealth(ctx context.Context) []LayerHealth {
	layers, _ := s.registry.ListLayers(ctx)

	health := make([]LayerHealth, len(layers))
	for i, layer := range layers {
		health[i] = LayerHealth{
			ID:     layer.ID,
			Status: layer.Status,
			Ready:  layer.IsReady(),
			Error:  layer.Error,
		}
	}

	return health
}
