package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jobrunner/tarantula/internal/ports/output"
)

func TestSyncService_RateLimiting(t *testing.T) {
	registry := newTestRegistry(t, &mockStorage{}, testSource(), nil)
	service := NewSyncService(registry, time.Hour, testLogger())

	ctx := context.Background()

	// First call should succeed (sync will return 0 added since storage is empty)
	result, err := service.TriggerSync(ctx)
	if err != nil {
		t.Errorf("first sync should succeed, got error: %v", err)
	}
	if result.LayersAdded != 0 {
		t.Errorf("expected 0 layers added with empty storage, got %d", result.LayersAdded)
	}

	// Immediate second call should be rate limited
	_, err = service.TriggerSync(ctx)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestSyncService_StartStop(t *testing.T) {
	registry := newTestRegistry(t, &mockStorage{}, testSource(), nil)

	// Use a short interval for testing
	service := NewSyncService(registry, 100*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	// Should complete without hanging
	service.Stop()
}

func TestSyncService_Interval(t *testing.T) {
	registry := newTestRegistry(t, &mockStorage{}, testSource(), nil)

	interval := 2 * time.Hour
	service := NewSyncService(registry, interval, testLogger())

	if service.Interval() != interval {
		t.Errorf("expected interval %v, got %v", interval, service.Interval())
	}
}

func TestSyncService_SyncAddsNewLayers(t *testing.T) {
	storage := &mockStorage{objects: objects("seoul/sido.shp", "seoul/sigungu.shp", "seoul/notes.txt")}
	registry := newTestRegistry(t, storage, testSource(), nil)
	service := NewSyncService(registry, time.Hour, testLogger())

	changes := 0
	service.OnChange(func(context.Context) { changes++ })

	result, err := service.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.LayersAdded != 2 {
		t.Errorf("expected 2 layers added, got %d", result.LayersAdded)
	}
	if result.LayersTotal != 2 {
		t.Errorf("expected 2 total layers, got %d", result.LayersTotal)
	}
	if changes != 1 {
		t.Errorf("expected 1 change notification, got %d", changes)
	}
}

func TestSyncService_NoChangeNoNotification(t *testing.T) {
	registry := newTestRegistry(t, &mockStorage{}, testSource(), nil)
	service := NewSyncService(registry, time.Hour, testLogger())

	called := false
	service.OnChange(func(context.Context) { called = true })

	if _, err := service.sync(context.Background()); err != nil {
		t.Fatalf("sync() error = %v", err)
	}
	if called {
		t.Error("OnChange called although nothing changed")
	}
}

func TestSyncService_Cooldown(t *testing.T) {
	registry := newTestRegistry(t, &mockStorage{}, testSource(), nil)
	service := NewSyncService(registry, time.Hour, testLogger(), WithCooldown(20*time.Millisecond))

	if service.Cooldown() != 20*time.Millisecond {
		t.Fatalf("Cooldown() = %v", service.Cooldown())
	}
	ctx := context.Background()
	if _, err := service.TriggerSync(ctx); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if _, err := service.TriggerSync(ctx); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second sync err = %v, want ErrRateLimited", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := service.TriggerSync(ctx); err != nil {
		t.Errorf("sync after cooldown failed: %v", err)
	}
}

func TestSyncService_ReportsUpdates(t *testing.T) {
	storage := &mockStorage{objects: []output.StorageObject{{Key: "seoul/sido.geojson", ETag: "v1"}}}
	registry := newTestRegistry(t, storage, testSource(), nil)
	service := NewSyncService(registry, time.Hour, testLogger(), WithCooldown(time.Nanosecond))
	ctx := context.Background()

	if err := registry.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	storage.objects[0].ETag = "v2"
	time.Sleep(time.Millisecond)
	result, err := service.TriggerSync(ctx)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.LayersUpdated != 1 || result.LayersAdded != 0 || result.LayersTotal != 1 {
		t.Errorf("result = %+v, want one update", result)
	}
}

func TestSyncService_StopTwice(t *testing.T) {
	registry := newTestRegistry(t, &mockStorage{}, testSource(), nil)
	service := NewSyncService(registry, time.Hour, testLogger())
	service.Start(context.Background())
	service.Stop()
	service.Stop()
}
