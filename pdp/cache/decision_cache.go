// pdp/cache/decision_cache.go
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	logger "github.com/gatekeeper-project/gatekeeper/logging"
	"github.com/gatekeeper-project/gatekeeper/model"
)

// DecisionCache memoizes full decisions per request fingerprint. A cache
// fault degrades to a miss on read and a skipped write on put; the engine
// stays correct either way.
type DecisionCache interface {
	Get(ctx context.Context, key string) *model.AccessDecision
	Put(ctx context.Context, key string, decision *model.AccessDecision)
	Clear(ctx context.Context)
}

type decisionEntry struct {
	decision  model.AccessDecision
	expiresAt time.Time
}

// MemoryDecisionCache is a process-local TTL cache. Reads share an RWMutex
// so concurrent reads never block each other.
type MemoryDecisionCache struct {
	mu      sync.RWMutex
	entries map[string]decisionEntry
	ttl     time.Duration
}

func NewMemoryDecisionCache(ttl time.Duration) *MemoryDecisionCache {
	return &MemoryDecisionCache{
		entries: make(map[string]decisionEntry),
		ttl:     ttl,
	}
}

func (c *MemoryDecisionCache) Get(ctx context.Context, key string) *model.AccessDecision {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// refreshed the entry in the meantime.
		if current, ok := c.entries[key]; ok && time.Now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil
	}

	decision := entry.decision
	return &decision
}

func (c *MemoryDecisionCache) Put(ctx context.Context, key string, decision *model.AccessDecision) {
	c.mu.Lock()
	c.entries[key] = decisionEntry{
		decision:  *decision,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

func (c *MemoryDecisionCache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]decisionEntry)
	c.mu.Unlock()
}

const decisionKeyPrefix = "access:"

// RedisDecisionCache shares decisions between instances through Redis.
type RedisDecisionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDecisionCache(client *redis.Client, ttl time.Duration) *RedisDecisionCache {
	return &RedisDecisionCache{client: client, ttl: ttl}
}

func (c *RedisDecisionCache) Get(ctx context.Context, key string) *model.AccessDecision {
	data, err := c.client.Get(ctx, decisionKeyPrefix+key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		logger.Warn("Error reading decision from cache", zap.Error(err), zap.String("key", key))
		return nil
	}

	var decision model.AccessDecision
	if err := json.Unmarshal([]byte(data), &decision); err != nil {
		logger.Warn("Malformed cached decision", zap.Error(err), zap.String("key", key))
		return nil
	}
	return &decision
}

func (c *RedisDecisionCache) Put(ctx context.Context, key string, decision *model.AccessDecision) {
	data, err := json.Marshal(decision)
	if err != nil {
		logger.Warn("Error marshaling decision for cache", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, decisionKeyPrefix+key, data, c.ttl).Err(); err != nil {
		logger.Warn("Error writing decision to cache", zap.Error(err), zap.String("key", key))
	}
}

func (c *RedisDecisionCache) Clear(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, decisionKeyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warn("Error scanning decision cache keys", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("Error clearing decision cache", zap.Error(err))
	}
}
