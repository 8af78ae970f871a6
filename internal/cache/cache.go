// Package cache provides Redis-based caching for candle series and
// analysis snapshots with graceful degradation: when Redis is
// unhealthy, operations return errors and callers recompute.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"confluence-engine/config"
	"confluence-engine/internal/engine"
	"confluence-engine/internal/series"
)

// Key formats
const (
	keyCandles  = "candles:%s:%s"  // symbol, timeframe
	keySnapshot = "snapshot:%s:%s" // symbol, timeframe
)

// Default TTLs
const (
	DefaultCandleTTL   = 1 * time.Minute
	DefaultSnapshotTTL = 5 * time.Minute
)

// Service wraps a Redis client behind a small health gate: repeated
// failures mark the client unhealthy and calls short-circuit until the
// recovery backoff elapses.
type Service struct {
	client *redis.Client

	mu           sync.Mutex
	healthy      bool
	failureCount int
	lastFailure  time.Time

	maxFailures     int
	recoveryBackoff time.Duration
}

// NewService connects to Redis and verifies connectivity
func NewService(cfg config.RedisConfig) (*Service, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Service{
		client:          client,
		healthy:         true,
		maxFailures:     3,
		recoveryBackoff: 30 * time.Second,
	}, nil
}

// GetSeries returns a cached candle series, or an error when absent or
// Redis is degraded
func (s *Service) GetSeries(ctx context.Context, symbol, timeframe string) (*series.CandleSeries, error) {
	var out series.CandleSeries
	if err := s.getJSON(ctx, fmt.Sprintf(keyCandles, symbol, timeframe), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetSeries caches a candle series
func (s *Service) SetSeries(ctx context.Context, in *series.CandleSeries, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCandleTTL
	}
	return s.setJSON(ctx, fmt.Sprintf(keyCandles, in.Symbol, in.Timeframe), in, ttl)
}

// GetSnapshot returns a cached analysis snapshot
func (s *Service) GetSnapshot(ctx context.Context, symbol, timeframe string) (*engine.Snapshot, error) {
	var out engine.Snapshot
	if err := s.getJSON(ctx, fmt.Sprintf(keySnapshot, symbol, timeframe), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetSnapshot caches an analysis snapshot
func (s *Service) SetSnapshot(ctx context.Context, snap *engine.Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return s.setJSON(ctx, fmt.Sprintf(keySnapshot, snap.Symbol, snap.Timeframe), snap, ttl)
}

// Close releases the Redis connection pool
func (s *Service) Close() error {
	return s.client.Close()
}

func (s *Service) getJSON(ctx context.Context, key string, out interface{}) error {
	if !s.allowed() {
		return fmt.Errorf("cache unhealthy, skipping get %s", key)
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.recordFailure()
		}
		return err
	}
	s.recordSuccess()

	return json.Unmarshal(data, out)
}

func (s *Service) setJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	if !s.allowed() {
		return fmt.Errorf("cache unhealthy, skipping set %s", key)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.recordFailure()
		return err
	}
	s.recordSuccess()
	return nil
}

func (s *Service) allowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.healthy {
		return true
	}
	if time.Since(s.lastFailure) > s.recoveryBackoff {
		s.healthy = true
		s.failureCount = 0
		return true
	}
	return false
}

func (s *Service) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failureCount++
	s.lastFailure = time.Now()
	if s.failureCount >= s.maxFailures {
		s.healthy = false
	}
}

func (s *Service) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureCount = 0
	s.healthy = true
}
