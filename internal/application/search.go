package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/ports/input"
	"github.com/jobrunner/tarantula/internal/ports/output"
	"github.com/jobrunner/tarantula/internal/spatial"
)

// searchAll labels the duration of hierarchical searches.
const searchAll = "*"

var _ input.SearchService = (*SearchService)(nil)

// SearchService resolves coordinates against the loaded region layers.
type SearchService struct {
	registry *LayerRegistry
	cache    output.ResultCache
	metrics  output.MetricsCollector
	logger   *slog.Logger
	debug    bool
}

// SearchServiceConfig holds configuration for the search service.
type SearchServiceConfig struct {
	Debug bool // Log every match
}

// NewSearchService creates a new search service.
func NewSearchService(
	registry *LayerRegistry,
	cache output.ResultCache,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg SearchServiceConfig,
) *SearchService {
	if cache == nil {
		cache = output.NoOpCache{}
	}

	return &SearchService{
		registry: registry,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		debug:    cfg.Debug,
	}
}

// Search resolves a coordinate against the hierarchy layers. Every hit
// continues into the district and district_any layers of the matched
// region's district. Matches are ordered by level.
func (s *SearchService) Search(ctx context.Context, coord domain.Coordinate) (*domain.SearchResponse, error) {
	start := time.Now()

	if err := coord.Validate(); err != nil {
		return nil, err
	}

	snap := s.registry.Snapshot()
	key := snap.ID + ":" + coord.CacheKey()

	if cached, ok := s.lookup(ctx, key); ok {
		cached.Cached = true
		cached.ProcessingTime = time.Since(start)
		return cached, nil
	}

	response := &domain.SearchResponse{
		Coordinate: coord,
		Matches:    []domain.Match{},
	}

	for _, h := range snap.Hierarchies {
		m, ok := s.match(h, coord, false)
		if !ok {
			continue
		}
		response.AddMatch(m)

		for _, d := range snap.Districts[m.District] {
			if dm, ok := s.match(d, coord, false); ok {
				response.AddMatch(dm)
			}
		}

		for _, d := range snap.DistrictAny[m.District] {
			if am, ok := s.match(d, coord, true); ok {
				response.AddMatch(am)
				break
			}
		}
	}

	response.SortByLevel()
	response.ProcessingTime = time.Since(start)
	s.metrics.ObserveSearchDuration(searchAll, response.ProcessingTime)

	if err := s.cache.Set(ctx, key, response); err != nil {
		s.logger.Warn("failed to cache search response", "error", err)
	}

	return response, nil
}

// lookup returns a cached response. Cache failures count as misses.
func (s *SearchService) lookup(ctx context.Context, key string) (*domain.SearchResponse, bool) {
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("result cache lookup failed", "error", err)
		return nil, false
	}
	s.metrics.IncCacheLookup(ok)
	return cached, ok
}

// match searches one layer. The boundary vertices are attached when
// requested.
func (s *SearchService) match(view LayerView, coord domain.Coordinate, withBoundary bool) (domain.Match, bool) {
	if !view.Layer.MayContain(coord) {
		s.metrics.IncSearchCount(view.Layer.ID, false)
		return domain.Match{}, false
	}

	var (
		id       int
		vertices []spatial.LngLat
	)
	if withBoundary {
		result := view.Data.Index.SearchPolygon(coord.Lon, coord.Lat)
		id, vertices = result.ID, result.Vertices
	} else {
		id = view.Data.Index.Search(coord.Lon, coord.Lat)
	}

	region, ok := view.Data.Region(id)
	s.metrics.IncSearchCount(view.Layer.ID, ok)
	if !ok {
		return domain.Match{}, false
	}

	if s.debug {
		s.logger.Debug("region matched",
			"layer", view.Layer.ID, "id", id, "name", region.Name, "level", region.Level)
	}

	return domain.Match{
		District:   region.District,
		Level:      region.Level,
		Name:       region.Name,
		LayerID:    view.Layer.ID,
		RegionID:   id,
		Attributes: region.Attributes,
		LngLats:    vertices,
	}, true
}

// SearchLayer resolves a coordinate against a single ready layer.
func (s *SearchService) SearchLayer(ctx context.Context, layerID string, coord domain.Coordinate, withBoundary bool) (*domain.LayerSearchResult, error) {
	start := time.Now()

	if err := coord.Validate(); err != nil {
		return nil, err
	}

	view, ok := s.registry.Snapshot().Layer(layerID)
	if !ok {
		if _, err := s.registry.GetLayer(ctx, layerID); err != nil {
			return nil, err
		}
		return nil, &domain.SearchError{LayerID: layerID, Err: domain.ErrNotReady}
	}

	result := &domain.LayerSearchResult{
		LayerID:  layerID,
		RegionID: spatial.NoMatch,
	}

	if view.Layer.MayContain(coord) {
		if withBoundary {
			r := view.Data.Index.SearchPolygon(coord.Lon, coord.Lat)
			result.RegionID, result.LngLats = r.ID, r.Vertices
		} else {
			result.RegionID = view.Data.Index.Search(coord.Lon, coord.Lat)
		}
	}
	if region, ok := view.Data.Region(result.RegionID); ok {
		result.Region = region
	} else {
		result.RegionID = spatial.NoMatch
	}

	result.QueryTime = time.Since(start)
	s.metrics.IncSearchCount(layerID, result.Found())
	s.metrics.ObserveSearchDuration(layerID, result.QueryTime)

	return result, nil
}

// Invalidate drops cached responses, e.g. after layers changed.
func (s *SearchService) Invalidate(ctx context.Context) {
	if err := s.cache.Flush(ctx); err != nil {
		s.logger.Warn("failed to flush result cache", "error", err)
	}
}
