package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/heartbeam/heartbeam/internal/config"
)

// TTLs for the hot-path caches. Correctness never depends on any of these
// entries existing; a miss re-runs the underlying query.
const (
	DiscoveryTTL    = 5 * time.Minute
	BlockCheckTTL   = 5 * time.Minute
	ConversationTTL = time.Minute
	BalanceTTL      = time.Minute
	QuotaTTL        = time.Minute
	UnreadCountTTL  = 30 * time.Second
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes a Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

// Get returns the value for key, or ("", false, nil) on a cache miss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.Client.Del(ctx, keys...).Err()
}

// Keys are derived from (entity type, entity id, parameter) tuples so the
// components cannot collide in one keyspace.

// KeyDiscovery caches a ranked candidate id list per (user, limit).
func KeyDiscovery(userID uint64, limit int) string {
	return fmt.Sprintf("discovery:%d:limit:%d", userID, limit)
}

// DiscoveryLimits are the page sizes discovery results get cached under.
// Invalidation sweeps all of them for a user.
var DiscoveryLimits = []int{10, 20, 50}

// KeysDiscoveryAll returns every discovery cache key for a user.
func KeysDiscoveryAll(userID uint64) []string {
	keys := make([]string, 0, len(DiscoveryLimits))
	for _, limit := range DiscoveryLimits {
		keys = append(keys, KeyDiscovery(userID, limit))
	}
	return keys
}

// KeyBlockPair caches the symmetric block check for an unordered user pair.
func KeyBlockPair(a, b uint64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("block:pair:%d:%d", a, b)
}

// KeyConversationList caches a user's conversation list.
func KeyConversationList(userID uint64) string {
	return fmt.Sprintf("conversations:user:%d", userID)
}

// KeyUnreadCount caches a user's unread message count.
func KeyUnreadCount(userID uint64) string {
	return fmt.Sprintf("unread:user:%d", userID)
}

// KeyWalletBalance caches a user's coin balance.
func KeyWalletBalance(userID uint64) string {
	return fmt.Sprintf("wallet:balance:%d", userID)
}

// KeyDailyQuota caches a user's quota row for one calendar date.
func KeyDailyQuota(userID uint64, date string) string {
	return fmt.Sprintf("quota:user:%d:date:%s", userID, date)
}
