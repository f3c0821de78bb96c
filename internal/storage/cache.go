package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketing-brain/internal/brain"
	"marketing-brain/internal/config"
)

// LatestCache keeps the most recent cycle result per organization in Redis
// so dashboards can read it without touching the history tables.
type LatestCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewLatestCache connects to Redis using the cache section of the config.
func NewLatestCache(cfg config.CacheConfig) *LatestCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewLatestCacheWithClient(client, cfg.TTL, cfg.KeyPrefix)
}

// NewLatestCacheWithClient wraps an existing client.
func NewLatestCacheWithClient(client *redis.Client, ttl time.Duration, prefix string) *LatestCache {
	return &LatestCache{client: client, ttl: ttl, prefix: prefix}
}

// Ping checks the connection.
func (c *LatestCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *LatestCache) Close() error {
	return c.client.Close()
}

func (c *LatestCache) key(organizationID string) string {
	return c.prefix + organizationID
}

// putIfNewer keeps the hash at the newest cycle: a result older than the
// stored one is dropped. ARGV: cycle ts (unix ms), payload, ttl (ms).
var putIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'ts')
if current and tonumber(current) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'ts', ARGV[1], 'payload', ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// Put stores result as the latest cycle of its organization. stored is
// false when the cache already holds a newer cycle (e.g. during a replay).
func (c *LatestCache) Put(ctx context.Context, result brain.CycleResult) (bool, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("marshal cycle result: %w", err)
	}
	keys := []string{c.key(result.OrganizationID)}
	stored, err := putIfNewer.Run(ctx, c.client, keys, result.Timestamp.UnixMilli(), string(payload), c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("cache latest cycle: %w", err)
	}
	return stored == 1, nil
}

// Latest returns the cached cycle; ok is false on a miss.
func (c *LatestCache) Latest(ctx context.Context, organizationID string) (brain.CycleResult, bool, error) {
	raw, err := c.client.HGet(ctx, c.key(organizationID), "payload").Bytes()
	if errors.Is(err, redis.Nil) {
		return brain.CycleResult{}, false, nil
	}
	if err != nil {
		return brain.CycleResult{}, false, fmt.Errorf("read latest cycle: %w", err)
	}
	var result brain.CycleResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return brain.CycleResult{}, false, fmt.Errorf("decode latest cycle: %w", err)
	}
	return result, true, nil
}
