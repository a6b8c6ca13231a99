package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncSearchCount increments the search counter for a layer.
	IncSearchCount(layerID string, matched bool)

	// ObserveSearchDuration records search duration.
	ObserveSearchDuration(layerID string, duration time.Duration)

	// SetLayersLoaded sets the number of registered layers.
	SetLayersLoaded(count int)

	// SetLayersReady sets the number of ready layers.
	SetLayersReady(count int)

	// SetRegionsLoaded sets the number of regions across ready layers.
	SetRegionsLoaded(count int)

	// IncLoopRejected counts a ring rejected during loop construction.
	IncLoopRejected(kind string)

	// IncCacheLookup counts a result cache lookup.
	IncCacheLookup(hit bool)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncSearchCount implements MetricsCollector.
func (n *NoOpMetrics) IncSearchCount(_ string, _ bool) {}

// ObserveSearchDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveSearchDuration(_ string, _ time.Duration) {}

// SetLayersLoaded implements MetricsCollector.
func (n *NoOpMetrics) SetLayersLoaded(_ int) {}

// SetLayersReady implements MetricsCollector.
func (n *NoOpMetrics) SetLayersReady(_ int) {}

// SetRegionsLoaded implements MetricsCollector.
func (n *NoOpMetrics) SetRegionsLoaded(_ int) {}

// IncLoopRejected implements MetricsCollector.
func (n *NoOpMetrics) IncLoopRejected(_ string) {}

// IncCacheLookup implements MetricsCollector.
func (n *NoOpMetrics) IncCacheLookup(_ bool) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
