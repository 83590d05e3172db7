package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ServiceConfig configures the cache service.
type ServiceConfig struct {
	Capacity        int           // Maximum number of entries (default: 256)
	DefaultTTL      time.Duration // Default TTL for entries (default: 24 hours)
	CleanupInterval time.Duration // Interval for expired entry cleanup (default: 10 minutes)
}

// DefaultServiceConfig returns default cache service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Capacity:        256,
		DefaultTTL:      24 * time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}

// Service implements CacheService on an LRUCache with a background sweeper.
type Service struct {
	lru *LRUCache

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewService creates a new cache service and starts its sweeper.
func NewService(cfg ServiceConfig) *Service {
	def := DefaultServiceConfig()
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		lru:    NewLRUCache(cfg.Capacity, cfg.DefaultTTL),
		cancel: cancel,
	}

	s.wg.Add(1)
	go s.cleanupLoop(ctx, cfg.CleanupInterval)

	return s
}

// Close stops the sweeper. It is safe to call more than once.
func (s *Service) Close() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		st := s.Stats()
		slog.Info("cache closed", "size", st.Size, "hits", st.Hits, "misses", st.Misses)
	})
}

// Get implements CacheService.
func (s *Service) Get(_ context.Context, key string) ([]byte, bool) {
	return s.lru.Get(key)
}

// Set implements CacheService.
func (s *Service) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.lru.Set(key, value, ttl)
	return nil
}

// Stats returns cache counters.
func (s *Service) Stats() Stats {
	return s.lru.Stats()
}

func (s *Service) cleanupLoop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.lru.CleanupExpired()
		}
	}
}

// Ensure Service implements CacheService
var _ CacheService = (*Service)(nil)
