package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheKey is the only key shape the dividend cache holds.
func CacheKey(netuid uint16, hotkey string) string {
	return fmt.Sprintf("%d:%s", netuid, hotkey)
}

// DividendCache is a cache-aside wrapper over Redis. Redis failures degrade
// to misses and dropped writes; they never fail the caller.
type DividendCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewDividendCache(client *redis.Client, logger *zap.Logger) *DividendCache {
	return &DividendCache{client: client, logger: logger}
}

// Get returns the cached payload for key, if any.
func (s *DividendCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return payload, true
}

// Set stores payload under key for ttl. Non-positive TTLs are refused.
func (s *DividendCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		s.logger.Error("refusing cache write without positive ttl", zap.String("key", key), zap.Duration("ttl", ttl))
		return
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
