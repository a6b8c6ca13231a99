// Package application contains the application services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/ports/input"
	"github.com/jobrunner/tarantula/internal/ports/output"
)

// warmUpLng and warmUpLat are queried once after loading so the lazily built
// shape indexes are ready before the first request.
const (
	warmUpLng = 127.1
	warmUpLat = 35.1
)

var _ input.LayerRegistry = (*LayerRegistry)(nil)

// LayerRegistry manages loaded region layers.
type LayerRegistry struct {
	mu        sync.RWMutex
	layers    map[string]*layerEntry
	snapshot  *Snapshot
	catalog   Catalog
	source    output.LayerSource
	storage   output.ObjectStorage
	metrics   output.MetricsCollector
	logger    *slog.Logger
	localPath string

	// postgisPath is set when layers are read from PostGIS instead of storage.
	postgisPath func(table, district string) string
}

type layerEntry struct {
	Layer    *domain.Layer
	Entry    CatalogEntry
	Data     *output.LoadedLayer
	Revision string // storage revision the layer was read from
}

// RegistryOption configures a LayerRegistry.
type RegistryOption func(*LayerRegistry)

// WithPostGIS makes the registry read every catalog layer from PostGIS.
func WithPostGIS(pathFor func(table, district string) string) RegistryOption {
	return func(r *LayerRegistry) {
		r.postgisPath = pathFor
	}
}

// NewLayerRegistry creates a new layer registry.
func NewLayerRegistry(
	catalog Catalog,
	source output.LayerSource,
	storage output.ObjectStorage,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	localPath string,
	opts ...RegistryOption,
) *LayerRegistry {
	r := &LayerRegistry{
		layers:    make(map[string]*layerEntry),
		catalog:   catalog,
		source:    source,
		storage:   storage,
		metrics:   metrics,
		logger:    logger,
		localPath: localPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.snapshot = r.buildSnapshot()
	return r
}

// LoadLayer loads a layer file below the local path, e.g. after the watcher
// saw it change. Files outside the catalog are rejected with
// ErrLayerNotFound.
func (r *LayerRegistry) LoadLayer(ctx context.Context, path string) error {
	key, err := r.keyFor(path)
	if err != nil {
		return err
	}
	entry, ok := r.catalog.Lookup(key)
	if !ok {
		return fmt.Errorf("%s: %w", key, domain.ErrLayerNotFound)
	}
	return r.load(ctx, entry, path, "")
}

// load reads the layer and publishes it. A layer that is already loaded
// keeps serving until the replacement is ready.
func (r *LayerRegistry) load(ctx context.Context, entry CatalogEntry, path, rev string) error {
	logger := r.logger.With("layer", entry.ID, "path", path)
	logger.Info("loading layer")
	start := time.Now()

	format, err := domain.FormatFromPath(path)
	if err != nil {
		return err
	}

	layer := &domain.Layer{
		ID:       entry.ID,
		Name:     entry.Spec.Name,
		District: entry.District,
		Level:    entry.Spec.Level,
		Role:     entry.Spec.Role,
		Format:   format,
		Path:     path,
		Status:   domain.StatusLoading,
	}
	if info, err := os.Stat(path); err == nil {
		layer.Size = info.Size()
	}

	r.mu.Lock()
	if _, ok := r.layers[entry.ID]; !ok {
		placeholder := *layer
		r.layers[entry.ID] = &layerEntry{Layer: &placeholder, Entry: entry}
	}
	r.mu.Unlock()

	data, err := r.source.Load(ctx, path, entry.Spec)
	if err != nil {
		logger.Error("failed to load layer", "error", err)
		layer.Status = domain.StatusError
		layer.Error = err.Error()
		r.publish(&layerEntry{Layer: layer, Entry: entry, Revision: rev})
		return err
	}

	for i := range data.Regions {
		data.Regions[i].District = entry.District
	}

	layer.Regions = len(data.Regions)
	layer.Rejected = data.Rejected
	if data.Extent.IsValid() && data.Extent.Width() < 180 {
		extent := data.Extent
		layer.Extent = &extent
	}
	layer.Status = domain.StatusReady
	layer.LoadedAt = time.Now()

	r.publish(&layerEntry{Layer: layer, Entry: entry, Data: data, Revision: rev})
	logger.Info("layer loaded",
		"regions", layer.Regions,
		"rejected", layer.Rejected,
		"duration", time.Since(start))
	return nil
}

// publish replaces an entry and rebuilds the search snapshot.
func (r *LayerRegistry) publish(e *layerEntry) {
	r.mu.Lock()
	r.layers[e.Layer.ID] = e
	r.snapshot = r.buildSnapshot()
	r.mu.Unlock()

	r.updateMetrics()
}

// UnloadLayer unloads a layer.
func (r *LayerRegistry) UnloadLayer(_ context.Context, layerID string) error {
	r.logger.Info("unloading layer", "id", layerID)

	r.mu.Lock()
	if _, ok := r.layers[layerID]; !ok {
		r.mu.Unlock()
		return domain.ErrLayerNotFound
	}
	delete(r.layers, layerID)
	r.snapshot = r.buildSnapshot()
	r.mu.Unlock()

	r.updateMetrics()
	return nil
}

// UnloadPath unloads the layer read from a local file.
func (r *LayerRegistry) UnloadPath(ctx context.Context, path string) error {
	key, err := r.keyFor(path)
	if err != nil {
		return err
	}
	entry, ok := r.catalog.Lookup(key)
	if !ok {
		return fmt.Errorf("%s: %w", key, domain.ErrLayerNotFound)
	}
	return r.UnloadLayer(ctx, entry.ID)
}

// ListLayers returns all registered layers ordered by id.
func (r *LayerRegistry) ListLayers(_ context.Context) ([]domain.Layer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	layers := make([]domain.Layer, 0, len(r.layers))
	for _, entry := range r.layers {
		layers = append(layers, *entry.Layer)
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i].ID < layers[j].ID })

	return layers, nil
}

// GetLayer returns a specific layer by ID.
func (r *LayerRegistry) GetLayer(_ context.Context, id string) (*domain.Layer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.layers[id]
	if !ok {
		return nil, domain.ErrLayerNotFound
	}

	layer := *entry.Layer
	return &layer, nil
}

// GetLayerStatus returns the status of a layer.
func (r *LayerRegistry) GetLayerStatus(_ context.Context, id string) (domain.LayerStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.layers[id]
	if !ok {
		return "", domain.ErrLayerNotFound
	}

	return entry.Layer.Status, nil
}

// IsReady returns true if a layer is ready for queries.
func (r *LayerRegistry) IsReady(layerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.layers[layerID]
	if !ok {
		return false
	}

	return entry.Layer.IsReady()
}

// Snapshot returns the current read view of all ready layers.
func (r *LayerRegistry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// updateMetrics updates the metrics collector with current layer counts.
func (r *LayerRegistry) updateMetrics() {
	r.mu.RLock()
	total := len(r.layers)
	ready := 0
	regions := 0
	for _, entry := range r.layers {
		if entry.Layer.IsReady() {
			ready++
			regions += entry.Layer.Regions
		}
	}
	r.mu.RUnlock()

	r.metrics.SetLayersLoaded(total)
	r.metrics.SetLayersReady(ready)
	r.metrics.SetRegionsLoaded(regions)
}

// LoadAll loads every catalog layer. Failures are recorded on the layer and
// do not stop the remaining layers from loading.
func (r *LayerRegistry) LoadAll(ctx context.Context) error {
	r.logger.Info("loading all layers")
	start := time.Now()

	if r.postgisPath != nil {
		for _, entry := range r.catalog.PostGISEntries(r.postgisPath) {
			if err := ctx.Err(); err != nil {
				return err
			}
			_ = r.load(ctx, entry, entry.Key, "")
		}
		r.warmUp()
		r.logger.Info("layers loaded", "count", r.LayerCount(), "duration", time.Since(start))
		return nil
	}

	objects, err := r.list(ctx)
	if err != nil {
		return err
	}
	available := newListing(objects)

	for _, entry := range r.catalog.Match(available.keys()) {
		if err := ctx.Err(); err != nil {
			return err
		}
		localPath, err := r.download(ctx, entry.Key, available)
		if err != nil {
			r.logger.Error("failed to download layer", "key", entry.Key, "error", err)
			continue
		}
		_ = r.load(ctx, entry, localPath, available.revision(entry.Key))
	}

	r.warmUp()
	r.logger.Info("layers loaded", "count", r.LayerCount(), "duration", time.Since(start))
	return nil
}

// warmUp queries every ready layer once.
func (r *LayerRegistry) warmUp() {
	snap := r.Snapshot()
	for _, view := range snap.layers {
		view.Data.Index.Search(warmUpLng, warmUpLat)
	}
}

// download fetches a layer file and its shapefile sidecars.
func (r *LayerRegistry) download(ctx context.Context, key string, l listing) (string, error) {
	for _, k := range append([]string{key}, Sidecars(key, l.has)...) {
		start := time.Now()
		err := r.storage.Download(ctx, k, r.localFile(k))
		r.metrics.ObserveStorageDuration("download", time.Since(start))
		r.metrics.IncStorageOperations("download", err == nil)
		if err != nil {
			return "", err
		}
	}
	return r.localFile(key), nil
}

func (r *LayerRegistry) list(ctx context.Context) ([]output.StorageObject, error) {
	start := time.Now()
	objects, err := r.storage.List(ctx, r.catalog.Districts)
	r.metrics.ObserveStorageDuration("list", time.Since(start))
	r.metrics.IncStorageOperations("list", err == nil)
	return objects, err
}

func (r *LayerRegistry) localFile(key string) string {
	return filepath.Join(r.localPath, filepath.FromSlash(key))
}

// keyFor converts a local path into a storage key.
func (r *LayerRegistry) keyFor(path string) (string, error) {
	base, err := filepath.Abs(r.localPath)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// IsLoaded returns true if a layer with the given ID is registered.
func (r *LayerRegistry) IsLoaded(layerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.layers[layerID]
	return ok
}

// LayerCount returns the number of registered layers.
func (r *LayerRegistry) LayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.layers)
}

// SyncStats contains statistics from a sync operation.
type SyncStats struct {
	Added   int
	Updated int
	Removed int
}

// Changed reports whether the sync modified the layer set.
func (s SyncStats) Changed() bool {
	return s.Added > 0 || s.Updated > 0 || s.Removed > 0
}

// Sync reconciles the loaded layers with storage. Catalog layers that
// appeared are loaded, layers whose stored revision changed are reloaded
// and layers that disappeared are unloaded.
func (r *LayerRegistry) Sync(ctx context.Context) (SyncStats, error) {
	if r.postgisPath != nil {
		r.logger.Debug("layers are read from postgis, nothing to sync")
		return SyncStats{}, nil
	}

	r.logger.Info("syncing layers from storage")

	objects, err := r.list(ctx)
	if err != nil {
		return SyncStats{}, err
	}
	available := newListing(objects)
	entries := r.catalog.Match(available.keys())

	remote := make(map[string]CatalogEntry, len(entries))
	for _, entry := range entries {
		remote[entry.ID] = entry
	}

	stats := SyncStats{}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		rev := available.revision(entry.Key)
		loaded, ok := r.revision(entry.ID)
		switch {
		case ok && loaded == rev:
			continue
		case ok && loaded == "":
			// Loaded from a local file event; adopt the listed revision.
			r.setRevision(entry.ID, rev)
			continue
		}

		localPath, err := r.download(ctx, entry.Key, available)
		if err != nil {
			r.logger.Error("failed to download layer", "key", entry.Key, "error", err)
			continue
		}
		if err := r.load(ctx, entry, localPath, rev); err != nil {
			continue
		}

		if ok {
			stats.Updated++
			r.logger.Info("layer updated", "id", entry.ID, "revision", rev)
		} else {
			stats.Added++
			r.logger.Info("new layer synced", "id", entry.ID)
		}
	}

	for _, layerID := range r.findLayersToRemove(remote) {
		r.logger.Info("removing layer not in remote storage", "id", layerID)

		key := r.layerKey(layerID)
		if err := r.UnloadLayer(ctx, layerID); err != nil {
			r.logger.Error("failed to unload removed layer", "id", layerID, "error", err)
			continue
		}
		r.removeLocal(key)
		stats.Removed++
	}

	if stats.Added+stats.Updated > 0 {
		r.warmUp()
	}

	r.logger.Info("sync completed",
		"added", stats.Added,
		"updated", stats.Updated,
		"removed", stats.Removed,
		"total", r.LayerCount())
	return stats, nil
}

// revision returns the storage revision of a registered layer.
func (r *LayerRegistry) revision(layerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.layers[layerID]
	if !ok {
		return "", false
	}
	return entry.Revision, true
}

func (r *LayerRegistry) setRevision(layerID, rev string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.layers[layerID]; ok {
		entry.Revision = rev
	}
}

// removeLocal deletes the cached copy of a layer and its sidecars.
func (r *LayerRegistry) removeLocal(key string) {
	if key == "" || r.postgisPath != nil {
		return
	}
	for _, k := range append([]string{key}, Sidecars(key, r.localExists)...) {
		path := r.localFile(k)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("failed to delete local cache file", "path", path, "error", err)
		}
	}
}

// findLayersToRemove returns layer IDs that are loaded but not in remote
// storage.
func (r *LayerRegistry) findLayersToRemove(remote map[string]CatalogEntry) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var toRemove []string
	for layerID := range r.layers {
		if _, exists := remote[layerID]; !exists {
			toRemove = append(toRemove, layerID)
		}
	}
	sort.Strings(toRemove)
	return toRemove
}

// layerKey returns the storage key of a loaded layer.
func (r *LayerRegistry) layerKey(layerID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.layers[layerID]; ok {
		return entry.Entry.Key
	}
	return ""
}

func (r *LayerRegistry) localExists(key string) bool {
	_, err := os.Stat(r.localFile(key))
	return err == nil
}

// listing maps the keys present in storage to their revision.
type listing map[string]string

func newListing(objects []output.StorageObject) listing {
	l := make(listing, len(objects))
	for _, obj := range objects {
		l[obj.Key] = obj.Revision()
	}
	return l
}

func (l listing) has(key string) bool {
	_, ok := l[key]
	return ok
}

func (l listing) keys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	return keys
}

// revision combines the revisions of a layer file and its sidecars, so
// replacing only the .dbf of a shapefile still counts as a change.
func (l listing) revision(key string) string {
	rev := l[key]
	for _, k := range Sidecars(key, l.has) {
		rev += "," + l[k]
	}
	return rev
}

// Snapshot is an immutable read view of the ready layers grouped by role.
// Its ID changes with every publish.
type Snapshot struct {
	ID          string
	Hierarchies []LayerView
	Districts   map[string][]LayerView
	DistrictAny map[string][]LayerView
	layers      map[string]LayerView
}

// LayerView is a ready layer together with its region index.
type LayerView struct {
	Layer domain.Layer
	Data  *output.LoadedLayer
}

// Layer returns the view of a ready layer.
func (s *Snapshot) Layer(id string) (LayerView, bool) {
	v, ok := s.layers[id]
	return v, ok
}

// Len returns the number of ready layers.
func (s *Snapshot) Len() int {
	return len(s.layers)
}

// buildSnapshot must be called with the write lock held.
func (r *LayerRegistry) buildSnapshot() *Snapshot {
	s := &Snapshot{
		ID:          uuid.NewString(),
		Districts:   make(map[string][]LayerView),
		DistrictAny: make(map[string][]LayerView),
		layers:      make(map[string]LayerView),
	}

	ids := make([]string, 0, len(r.layers))
	for id, entry := range r.layers {
		if entry.Layer.IsReady() && entry.Data != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		entry := r.layers[id]
		view := LayerView{Layer: *entry.Layer, Data: entry.Data}
		s.layers[id] = view

		switch entry.Layer.Role {
		case domain.RoleHierarchy:
			s.Hierarchies = append(s.Hierarchies, view)
		case domain.RoleDistrict:
			s.Districts[entry.Layer.District] = append(s.Districts[entry.Layer.District], view)
		case domain.RoleDistrictAny:
			s.DistrictAny[entry.Layer.District] = append(s.DistrictAny[entry.Layer.District], view)
		}
	}
	return s
}
