// Package cache provides the Redis-backed, derived rule snapshot the
// Monitoring Engine reads ahead of the Store (§5, §9): it is never the
// source of truth, so any miss or error falls back to Postgres and the
// result is simply repopulated.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ngbank/aml-compliance/internal/config"
	"github.com/ngbank/aml-compliance/internal/domain"
)

const activeRulesKey = "aml:rules:active"

type RuleCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRuleCache(cfg config.RedisConfig, logger *zap.Logger) *RuleCache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RuleCache{client: client, ttl: ttl, logger: logger}
}

// GetActiveRules returns the cached snapshot and true on a hit. Any Redis
// error or decode failure is logged and treated as a miss rather than
// propagated, since the caller always has an authoritative fallback.
func (c *RuleCache) GetActiveRules(ctx context.Context) ([]*domain.Rule, bool) {
	raw, err := c.client.Get(ctx, activeRulesKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("rule cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var rules []*domain.Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		c.logger.Warn("rule cache decode failed", zap.Error(err))
		return nil, false
	}
	return rules, true
}

// SetActiveRules refreshes the snapshot. Errors are logged, never
// returned: a failed write just means the next read falls through again.
func (c *RuleCache) SetActiveRules(ctx context.Context, rules []*domain.Rule) {
	raw, err := json.Marshal(rules)
	if err != nil {
		c.logger.Warn("rule cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, activeRulesKey, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("rule cache write failed", zap.Error(err))
	}
}

// Invalidate drops the snapshot, used whenever the Rule Registry creates,
// activates, deactivates, or retunes a rule so the next monitoring pass
// reads the fresh set rather than a stale cached one.
func (c *RuleCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, activeRulesKey).Err(); err != nil {
		c.logger.Warn("rule cache invalidate failed", zap.Error(err))
	}
}

func (c *RuleCache) Close() error {
	return c.client.Close()
}
