package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jobrunner/tarantula/internal/application"
	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/spatial"
)

// legacyRoute answers with a bare array of matches for existing clients.
const legacyRoute = "/tarantula"

// handleSearch handles hierarchical searches.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	coord, err := parseCoordinate(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	response, err := s.search.Search(r.Context(), coord)
	if err != nil {
		s.handleSearchError(w, r, err)
		return
	}

	if r.URL.Path == legacyRoute {
		s.writeJSON(w, http.StatusOK, formatLegacyMatches(response.Matches))
		return
	}
	s.writeJSON(w, http.StatusOK, formatSearchResponse(response))
}

// handleSearchLayer handles a lookup in a single layer.
func (s *Server) handleSearchLayer(w http.ResponseWriter, r *http.Request) {
	layerID := layerIDFromVars(r)

	coord, err := parseCoordinate(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	withBoundary := false
	if v := r.URL.Query().Get("boundary"); v != "" {
		withBoundary, err = strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid boundary parameter")
			return
		}
	}

	result, err := s.search.SearchLayer(r.Context(), layerID, coord, withBoundary)
	if err != nil {
		s.handleSearchError(w, r, err)
		return
	}

	body := map[string]interface{}{
		"layer_id":      result.LayerID,
		"found":         result.Found(),
		"region_id":     result.RegionID,
		"query_time_ms": float64(result.QueryTime.Microseconds()) / 1000,
	}
	if result.Region != nil {
		body["region"] = formatRegion(result.Region)
	}
	if len(result.LngLats) > 0 {
		body["lnglats"] = formatLngLats(result.LngLats)
	}
	s.writeJSON(w, http.StatusOK, body)
}

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":         boolToStatus(details.Healthy),
		"ready":          details.Ready,
		"layers_loaded":  details.LayersLoaded,
		"layers_ready":   details.LayersReady,
		"regions_loaded": details.RegionsLoaded,
		"components":     details.Components,
		"layers":         s.health.GetLayerHealth(r.Context()),
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleListLayers returns all registered layers.
func (s *Server) handleListLayers(w http.ResponseWriter, r *http.Request) {
	layers, err := s.registry.ListLayers(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list layers")
		return
	}

	response := make([]map[string]interface{}, len(layers))
	for i := range layers {
		response[i] = formatLayer(&layers[i])
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"layers": response,
		"count":  len(layers),
	})
}

// handleGetLayer returns a specific layer.
func (s *Server) handleGetLayer(w http.ResponseWriter, r *http.Request) {
	layer, err := s.registry.GetLayer(r.Context(), layerIDFromVars(r))
	if err != nil {
		if errors.Is(err, domain.ErrLayerNotFound) {
			s.writeError(w, http.StatusNotFound, "Layer not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to get layer")
		return
	}

	s.writeJSON(w, http.StatusOK, formatLayer(layer))
}

// handleSync handles the sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncService == nil {
		s.writeError(w, http.StatusNotFound, "Sync service not available")
		return
	}

	result, err := s.syncService.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			wait := int(math.Ceil(s.syncService.Cooldown().Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(wait))
			s.writeError(w, http.StatusTooManyRequests, fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", wait))
			return
		}
		s.logger.Error("sync failed", "error", err, "request_id", requestID(r))
		s.writeError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func layerIDFromVars(r *http.Request) string {
	vars := mux.Vars(r)
	return vars["district"] + "/" + vars["name"]
}

// parseCoordinate reads the required lon and lat query parameters.
func parseCoordinate(r *http.Request) (domain.Coordinate, error) {
	q := r.URL.Query()

	lon, err := parseFloatParam(q.Get("lon"), "lon")
	if err != nil {
		return domain.Coordinate{}, err
	}
	lat, err := parseFloatParam(q.Get("lat"), "lat")
	if err != nil {
		return domain.Coordinate{}, err
	}

	return domain.NewCoordinate(lon, lat), nil
}

func parseFloatParam(raw, name string) (float64, error) {
	if raw == "" {
		return 0, errors.New("coordinates required: use lon and lat")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("invalid " + name + " parameter")
	}
	return v, nil
}

func formatSearchResponse(resp *domain.SearchResponse) map[string]interface{} {
	matches := make([]map[string]interface{}, len(resp.Matches))
	for i := range resp.Matches {
		matches[i] = formatMatch(&resp.Matches[i])
	}

	return map[string]interface{}{
		"coordinate": map[string]interface{}{
			"lon": resp.Coordinate.Lon,
			"lat": resp.Coordinate.Lat,
		},
		"matches":            matches,
		"count":              len(matches),
		"cached":             resp.Cached,
		"processing_time_ms": float64(resp.ProcessingTime.Microseconds()) / 1000,
	}
}

func formatMatch(m *domain.Match) map[string]interface{} {
	out := map[string]interface{}{
		"district":   m.District,
		"level":      m.Level,
		"name":       m.Name,
		"layer_id":   m.LayerID,
		"region_id":  m.RegionID,
		"attributes": m.Attributes,
	}
	if m.HasBoundary() {
		out["lnglats"] = formatLngLats(m.LngLats)
	}
	return out
}

// legacyMatch is the match shape served on legacyRoute.
type legacyMatch struct {
	District string       `json:"district"`
	Level    int          `json:"level"`
	Name     string       `json:"name"`
	LngLats  [][2]float64 `json:"lnglats"`
}

func formatLegacyMatches(matches []domain.Match) []legacyMatch {
	out := make([]legacyMatch, len(matches))
	for i, m := range matches {
		out[i] = legacyMatch{
			District: m.District,
			Level:    m.Level,
			Name:     m.Name,
			LngLats:  formatLngLats(m.LngLats),
		}
	}
	return out
}

func formatRegion(r *domain.RegionInfo) map[string]interface{} {
	return map[string]interface{}{
		"district":   r.District,
		"level":      r.Level,
		"name":       r.Name,
		"attributes": r.Attributes,
	}
}

// formatLngLats renders vertices as [lng, lat] pairs.
func formatLngLats(points []spatial.LngLat) [][2]float64 {
	out := make([][2]float64, len(points))
	for i, p := range points {
		out[i] = [2]float64{p.Lng, p.Lat}
	}
	return out
}

func formatLayer(l *domain.Layer) map[string]interface{} {
	out := map[string]interface{}{
		"id":        l.ID,
		"name":      l.Name,
		"district":  l.District,
		"level":     l.Level,
		"role":      l.Role,
		"format":    l.Format,
		"size":      l.Size,
		"regions":   l.Regions,
		"rejected":  l.Rejected,
		"status":    string(l.Status),
		"ready":     l.IsReady(),
		"loaded_at": l.LoadedAt,
	}
	if l.Error != "" {
		out["error"] = l.Error
	}
	if l.Extent != nil {
		out["extent"] = map[string]interface{}{
			"min_lon": l.Extent.MinLon,
			"min_lat": l.Extent.MinLat,
			"max_lon": l.Extent.MaxLon,
			"max_lat": l.Extent.MaxLat,
		}
	}
	return out
}

// handleSearchError maps search errors to HTTP status codes.
func (s *Server) handleSearchError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		s.writeError(w, http.StatusBadRequest, validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrLayerNotFound):
		s.writeError(w, http.StatusNotFound, "Layer not found")
	case errors.Is(err, domain.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotReady):
		s.writeError(w, http.StatusServiceUnavailable, "Layer not ready")
	default:
		s.logger.Error("search error", "error", err, "request_id", requestID(r))
		s.writeError(w, http.StatusInternalServerError, "Search failed")
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
