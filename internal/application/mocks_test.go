package application

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/ports/output"
	"github.com/jobrunner/tarantula/internal/spatial"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockStorage implements output.ObjectStorage for testing. Download writes
// an empty file so the registry finds a local copy.
type mockStorage struct {
	objects     []output.StorageObject
	downloadErr error
	listErr     error

	mu         sync.Mutex
	downloaded []string
	districts  []string
}

func (m *mockStorage) List(_ context.Context, districts []string) ([]output.StorageObject, error) {
	m.mu.Lock()
	m.districts = districts
	m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.objects, nil
}

func (m *mockStorage) Download(_ context.Context, key, dest string) error {
	if m.downloadErr != nil {
		return m.downloadErr
	}
	m.mu.Lock()
	m.downloaded = append(m.downloaded, key)
	m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	return os.WriteFile(dest, nil, 0o600)
}

func objects(keys ...string) []output.StorageObject {
	out := make([]output.StorageObject, len(keys))
	for i, k := range keys {
		out[i] = output.StorageObject{Key: k}
	}
	return out
}

// square is a region covering [x, x+size] x [y, y+size].
type square struct {
	x, y, size float64
	name       string
}

// mockSource implements output.LayerSource. Layers are looked up by the
// directory and file stem of the loaded path.
type mockSource struct {
	layers  map[string][]square
	loadErr map[string]error
	calls   int
}

func (m *mockSource) Supports(_ domain.LayerFormat) bool {
	return true
}

func (m *mockSource) Load(_ context.Context, path string, spec domain.LayerSpec) (*output.LoadedLayer, error) {
	m.calls++
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	key := filepath.Base(filepath.Dir(path)) + "/" + stem
	if err := m.loadErr[key]; err != nil {
		return nil, err
	}
	return squareLayer(spec.Level, m.layers[key]...)
}

func squareLayer(level int, squares ...square) (*output.LoadedLayer, error) {
	layer := &output.LoadedLayer{
		Index:  spatial.NewIndex(),
		Extent: domain.EmptyExtent(),
	}
	for _, sq := range squares {
		points := []spatial.LngLat{
			{Lng: sq.x, Lat: sq.y},
			{Lng: sq.x, Lat: sq.y + sq.size},
			{Lng: sq.x + sq.size, Lat: sq.y + sq.size},
			{Lng: sq.x + sq.size, Lat: sq.y},
		}
		loop, err := spatial.BuildLoop(points, true, nil)
		if err != nil {
			return nil, err
		}
		polygon := spatial.NewPolygon()
		polygon.Add(loop)
		if _, err := layer.Index.Add(polygon); err != nil {
			return nil, err
		}
		for _, p := range points {
			layer.Extent.Extend(p.Lng, p.Lat)
		}
		layer.Regions = append(layer.Regions, domain.RegionInfo{
			Level:      level,
			Name:       sq.name,
			Attributes: map[string]string{"name": sq.name},
		})
	}
	return layer, nil
}

// mockCache implements output.ResultCache in memory.
type mockCache struct {
	mu      sync.Mutex
	entries map[string]*domain.SearchResponse
	getErr  error
	flushes int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]*domain.SearchResponse)}
}

func (m *mockCache) Get(_ context.Context, key string) (*domain.SearchResponse, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	resp, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	clone := *resp
	return &clone, true, nil
}

func (m *mockCache) Set(_ context.Context, key string, resp *domain.SearchResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *resp
	m.entries[key] = &clone
	return nil
}

func (m *mockCache) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*domain.SearchResponse)
	m.flushes++
	return nil
}

// mockMetrics records search counters.
type mockMetrics struct {
	output.NoOpMetrics
	mu       sync.Mutex
	searches map[string]int
	hits     int
	misses   int
	ready    int
	regions  int
}

func (m *mockMetrics) IncSearchCount(layerID string, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searches == nil {
		m.searches = make(map[string]int)
	}
	m.searches[layerID]++
}

func (m *mockMetrics) IncCacheLookup(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *mockMetrics) SetLayersReady(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = n
}

func (m *mockMetrics) SetRegionsLoaded(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions = n
}

var errLoad = errors.New("broken layer")

// testCatalog describes two districts with one hierarchy, one district and
// one district_any layer name each.
func testCatalog() Catalog {
	return Catalog{
		Districts:      []string{"seoul", "busan"},
		Hierarchies:    []string{"sido"},
		DistrictPar:    []string{"sigungu"},
		DistrictParAny: []string{"dong"},
		Layers: map[string]domain.LayerSpec{
			"sido":    {Level: 1, Attributes: []string{"code", "name"}},
			"sigungu": {Level: 2, Attributes: []string{"code", "name"}},
			"dong":    {Level: 3, Attributes: []string{"code", "name"}},
		},
	}
}
