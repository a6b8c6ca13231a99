package application

import (
	"context"
	"errors"
	"testing"

	"github.com/jobrunner/tarantula/internal/domain"
)

func TestHealthServiceIsHealthy(t *testing.T) {
	registry := newTestRegistry(t, &mockStorage{}, testSource(), nil)
	service := NewHealthService(registry)

	if !service.IsHealthy(context.Background()) {
		t.Error("IsHealthy should return true")
	}
}

func TestHealthServiceIsReady(t *testing.T) {
	tests := []struct {
		name   string
		layers map[string]domain.LayerStatus
		want   bool
	}{
		{
			name:   "empty registry is ready",
			layers: map[string]domain.LayerStatus{},
			want:   true,
		},
		{
			name:   "ready layer",
			layers: map[string]domain.LayerStatus{"seoul/sido": domain.StatusReady},
			want:   true,
		},
		{
			name:   "no ready layers",
			layers: map[string]domain.LayerStatus{"seoul/sido": domain.StatusLoading},
			want:   false,
		},
		{
			name: "mixed layers - one ready",
			layers: map[string]domain.LayerStatus{
				"seoul/sido":    domain.StatusError,
				"seoul/sigungu": domain.StatusReady,
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := newTestRegistry(t, &mockStorage{}, testSource(), nil)
			registry.mu.Lock()
			for id, status := range tt.layers {
				registry.layers[id] = &layerEntry{Layer: &domain.Layer{ID: id, Status: status}}
			}
			registry.mu.Unlock()

			service := NewHealthService(registry)
			if got := service.IsReady(context.Background()); got != tt.want {
				t.Errorf("IsReady() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealthServiceGetHealthDetails(t *testing.T) {
	source := testSource()
	source.loadErr = map[string]error{"busan/sido": errLoad}
	registry := newTestRegistry(t, testStorage(), source, nil)
	if err := registry.LoadAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	service := NewHealthService(registry)
	service.AddCheck("cache", func(context.Context) error { return errors.New("dial tcp: connection refused") })

	details := service.GetHealthDetails(context.Background())

	if !details.Healthy || !details.Ready {
		t.Errorf("Healthy = %v, Ready = %v", details.Healthy, details.Ready)
	}
	if details.LayersLoaded != 6 || details.LayersReady != 5 {
		t.Errorf("LayersLoaded = %d, LayersReady = %d; want 6, 5", details.LayersLoaded, details.LayersReady)
	}
	if details.RegionsLoaded != 6 {
		t.Errorf("RegionsLoaded = %d, want 6", details.RegionsLoaded)
	}
	if details.Components["registry"] != "ok" || details.Components["cache"] == "ok" {
		t.Errorf("Components = %v", details.Components)
	}

	health := service.GetLayerHealth(context.Background())
	if len(health) != 6 {
		t.Fatalf("GetLayerHealth() = %d entries, want 6", len(health))
	}
	if health[0].ID != "busan/sido" || health[0].Ready || health[0].Error == "" {
		t.Errorf("failed layer health = %+v", health[0])
	}
}
