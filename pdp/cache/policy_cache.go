// pdp/cache/policy_cache.go
package cache

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/gatekeeper-project/gatekeeper/dao"
	logger "github.com/gatekeeper-project/gatekeeper/logging"
	"github.com/gatekeeper-project/gatekeeper/model"
)

// PolicyCache memoizes, per (resource, action) pair, the ordered list of
// active applicable policies. A miss reloads every active policy from the
// repository and filters locally; any policy mutation clears the whole table
// rather than hunting for affected keys.
type PolicyCache struct {
	repo dao.PolicyRepository

	mu      sync.RWMutex
	entries map[string][]model.Policy
}

func NewPolicyCache(repo dao.PolicyRepository) *PolicyCache {
	return &PolicyCache{
		repo:    repo,
		entries: make(map[string][]model.Policy),
	}
}

// ApplicablePolicies returns all active policies whose patterns cover the
// resource and action, ordered by descending priority. Ties keep the
// repository's natural order.
func (c *PolicyCache) ApplicablePolicies(ctx context.Context, resource, action string) ([]model.Policy, error) {
	key := cacheKey(resource, action)

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	all, err := c.repo.FindActiveByPriorityDesc(ctx)
	if err != nil {
		return nil, err
	}

	applicable := []model.Policy{}
	for _, policy := range all {
		if policy.AppliesTo(resource, action) {
			applicable = append(applicable, policy)
		}
	}

	c.mu.Lock()
	c.entries[key] = applicable
	c.mu.Unlock()

	logger.Debug("Policy cache populated",
		zap.String("resource", resource),
		zap.String("action", action),
		zap.Int("policyCount", len(applicable)))
	return applicable, nil
}

// Clear drops the entire memoization table. Clearing an empty cache is a
// no-op, which keeps invalidation handlers idempotent.
func (c *PolicyCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string][]model.Policy)
	c.mu.Unlock()
}

// Len reports the number of memoized (resource, action) keys.
func (c *PolicyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cacheKey(resource, action string) string {
	return fmt.Sprintf("%s:%s", resource, action)
}
