package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/travelbook/config"
	"github.com/Domenick1991/travelbook/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client       *redis.Client
	resourcesTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, resourcesTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:       redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		resourcesTTL: resourcesTTL,
	}
}

func (c *RedisCache) GetResources(ctx context.Context, kind domain.ResourceKind) ([]domain.Resource, error) {
	data, err := c.client.Get(ctx, resourcesKey(kind)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var resources []domain.Resource
	if err := json.Unmarshal(data, &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

func (c *RedisCache) SetResources(ctx context.Context, kind domain.ResourceKind, resources []domain.Resource) error {
	payload, err := json.Marshal(resources)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, resourcesKey(kind), payload, c.resourcesTTL).Err()
}

func (c *RedisCache) InvalidateResources(ctx context.Context, kind domain.ResourceKind) error {
	return c.client.Del(ctx, resourcesKey(kind)).Err()
}

// AcquireTransferLock serializes transfers of a single booking across
// API instances.
func (c *RedisCache) AcquireTransferLock(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, transferLockKey(token), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseTransferLock(ctx context.Context, token string) error {
	return c.client.Del(ctx, transferLockKey(token)).Err()
}

// AcquireSweepLock guards a scheduler tick so replicated workers do not
// process the same sweep concurrently. The lock expires on its own; a
// crashed worker never wedges the sweep.
func (c *RedisCache) AcquireSweepLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, sweepLockKey(name), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseSweepLock(ctx context.Context, name string) error {
	return c.client.Del(ctx, sweepLockKey(name)).Err()
}

func resourcesKey(kind domain.ResourceKind) string {
	return fmt.Sprintf("cache:resources:%s", kind)
}

func transferLockKey(token string) string {
	return fmt.Sprintf("lock:transfer:%s", token)
}

func sweepLockKey(name string) string {
	return fmt.Sprintf("lock:sweep:%s", name)
}
