package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultSyncCooldown is the minimum time between two triggered syncs.
const DefaultSyncCooldown = 30 * time.Second

// ErrRateLimited is returned by TriggerSync during the cooldown.
var ErrRateLimited = errors.New("rate limit exceeded")

// SyncResult reports the outcome of a triggered sync.
type SyncResult struct {
	LayersAdded     int       `json:"layers_added"`
	LayersUpdated   int       `json:"layers_updated"`
	LayersRemoved   int       `json:"layers_removed"`
	LayersTotal     int       `json:"layers_total"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncService reconciles the registry with storage on a fixed interval and
// on demand.
type SyncService struct {
	registry *LayerRegistry
	interval time.Duration
	cooldown time.Duration
	logger   *slog.Logger
	onChange func(ctx context.Context)

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// running serializes scheduled and triggered syncs.
	running sync.Mutex

	mu          sync.Mutex
	lastTrigger time.Time
	nextSync    time.Time
}

// SyncOption configures a SyncService.
type SyncOption func(*SyncService)

// WithCooldown sets the minimum time between two triggered syncs.
func WithCooldown(d time.Duration) SyncOption {
	return func(s *SyncService) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// NewSyncService creates a new sync service.
func NewSyncService(registry *LayerRegistry, interval time.Duration, logger *slog.Logger, opts ...SyncOption) *SyncService {
	s := &SyncService{
		registry: registry,
		interval: interval,
		cooldown: DefaultSyncCooldown,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers a callback run after a sync changed the layer set.
func (s *SyncService) OnChange(fn func(ctx context.Context)) {
	s.onChange = fn
}

// Start runs the scheduler until ctx is canceled or Stop is called.
func (s *SyncService) Start(ctx context.Context) {
	s.logger.Info("starting sync service", "interval", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.setNextSync(time.Now().Add(s.interval))

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("sync service stopped: context canceled")
				return
			case <-s.stopCh:
				s.logger.Info("sync service stopped")
				return
			case <-ticker.C:
				if _, err := s.sync(ctx); err != nil {
					s.logger.Error("scheduled sync failed", "error", err)
				}
				s.setNextSync(time.Now().Add(s.interval))
			}
		}
	}()
}

// Stop ends the scheduler and waits for a running sync to finish.
func (s *SyncService) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping sync service")
		close(s.stopCh)
	})
	s.wg.Wait()
}

// TriggerSync runs a sync now. Calls within the cooldown of the previous
// trigger fail with ErrRateLimited.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	if !s.lastTrigger.IsZero() && time.Since(s.lastTrigger) < s.cooldown {
		s.mu.Unlock()
		return SyncResult{}, ErrRateLimited
	}
	s.lastTrigger = time.Now()
	next := s.nextSync
	s.mu.Unlock()

	stats, err := s.sync(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	return SyncResult{
		LayersAdded:     stats.Added,
		LayersUpdated:   stats.Updated,
		LayersRemoved:   stats.Removed,
		LayersTotal:     s.registry.LayerCount(),
		SyncedAt:        time.Now(),
		NextScheduledAt: next,
	}, nil
}

func (s *SyncService) sync(ctx context.Context) (SyncStats, error) {
	s.running.Lock()
	defer s.running.Unlock()

	stats, err := s.registry.Sync(ctx)
	if err != nil {
		return stats, err
	}
	if stats.Changed() && s.onChange != nil {
		s.onChange(ctx)
	}
	return stats, nil
}

func (s *SyncService) setNextSync(t time.Time) {
	s.mu.Lock()
	s.nextSync = t
	s.mu.Unlock()
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}

// Cooldown returns the minimum time between two triggered syncs.
func (s *SyncService) Cooldown() time.Duration {
	return s.cooldown
}
