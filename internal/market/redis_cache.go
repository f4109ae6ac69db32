package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/coinquorum/tradeengine/internal/metrics"
)

// DataCache is a short-TTL Redis store of ExtendedMarketData snapshots,
// keyed by symbol. The Assembler writes every freshly fetched snapshot here;
// it does not read from the cache, so every Snapshot call still goes to the
// exchange. Every read/write goes through metrics.RedisMetrics so Get calls
// show up in the redis_cache_hit_rate gauge.
type DataCache struct {
	rm  *metrics.RedisMetrics
	ttl time.Duration
}

// NewDataCache creates a new Redis-backed market data cache.
// If client is nil, returns nil (optional Redis support; the assembler
// falls back to always fetching live).
func NewDataCache(client *redis.Client, ttl time.Duration) *DataCache {
	if client == nil {
		return nil
	}
	if ttl == 0 {
		ttl = 5 * time.Second
	}
	return &DataCache{rm: metrics.NewRedisMetrics(client), ttl: ttl}
}

// Get retrieves a cached snapshot for a symbol.
func (c *DataCache) Get(ctx context.Context, symbol string) (*ExtendedMarketData, bool) {
	if c == nil || c.rm == nil {
		return nil, false
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	cached, err := c.rm.Get(cacheCtx, c.key(symbol))
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("symbol", symbol).Msg("market cache get error, treating as miss")
		}
		return nil, false
	}

	var data ExtendedMarketData
	if err := json.Unmarshal([]byte(cached), &data); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("failed to unmarshal cached market data")
		return nil, false
	}
	return &data, true
}

// Set stores a snapshot in cache with the configured TTL.
func (c *DataCache) Set(ctx context.Context, data ExtendedMarketData) error {
	if c == nil || c.rm == nil {
		return fmt.Errorf("market cache not initialized")
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal market data: %w", err)
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := c.rm.Set(cacheCtx, c.key(data.Symbol), payload, c.ttl); err != nil {
		log.Warn().Err(err).Str("symbol", data.Symbol).Msg("failed to cache market data")
		return err
	}
	return nil
}

// Health checks whether the Redis connection is reachable.
func (c *DataCache) Health(ctx context.Context) error {
	if c == nil || c.rm == nil {
		return fmt.Errorf("market cache not initialized")
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.rm.Client().Ping(cacheCtx).Err()
}

func (c *DataCache) key(symbol string) string {
	return fmt.Sprintf("tradeengine:market:%s", symbol)
}
