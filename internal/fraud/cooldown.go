package fraud

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldowns отмечает срабатывание правила для актора. Acquire возвращает false,
// если правило уже срабатывало для актора в пределах ttl.
type Cooldowns interface {
	Acquire(ctx context.Context, ruleID, actorKey string, ttl time.Duration) (bool, error)
}

// RedisCooldowns хранит кулдауны в Redis ключами с TTL.
type RedisCooldowns struct {
	client redis.Cmdable
	prefix string
}

func NewRedisCooldowns(client redis.Cmdable, prefix string) *RedisCooldowns {
	if prefix == "" {
		prefix = "fraud:cooldown"
	}
	return &RedisCooldowns{client: client, prefix: prefix}
}

func (c *RedisCooldowns) Acquire(ctx context.Context, ruleID, actorKey string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("%s:%s:%s", c.prefix, ruleID, actorKey)
	ok, err := c.client.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// MemoryCooldowns - кулдауны в памяти процесса, для режима без Redis.
type MemoryCooldowns struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryCooldowns(now func() time.Time) *MemoryCooldowns {
	if now == nil {
		now = time.Now
	}
	return &MemoryCooldowns{expires: make(map[string]time.Time), now: now}
}

func (c *MemoryCooldowns) Acquire(_ context.Context, ruleID, actorKey string, ttl time.Duration) (bool, error) {
	key := ruleID + ":" + actorKey
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if until, ok := c.expires[key]; ok && now.Before(until) {
		return false, nil
	}
	c.expires[key] = now.Add(ttl)
	return true, nil
}
