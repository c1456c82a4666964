package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anoa.com/challengebot/pkg/logger"
	"github.com/redis/go-redis/v9"
)

var ErrCacheDisabled = errors.New("cache disabled")

// Cache wraps a redis client. A nil *Cache is valid and behaves as disabled.
type Cache struct {
	client *redis.Client
}

// Connect returns nil (cache disabled) when url is empty.
func Connect(ctx context.Context, url string) (*Cache, error) {
	if url == "" {
		logger.WithComponent("cache").Info("redis disabled, REDIS_URL not set")
		return nil, nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithComponent("cache").Info("redis connection established")
	return New(client), nil
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *Cache) Client() *redis.Client {
	if !c.Enabled() {
		return nil
	}
	return c.client
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	if !c.Enabled() {
		return "", ErrCacheDisabled
	}
	return c.client.Get(ctx, key).Result()
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *Cache) Incr(ctx context.Context, key string) (int64, error) {
	if !c.Enabled() {
		return 0, ErrCacheDisabled
	}
	return c.client.Incr(ctx, key).Result()
}

func (c *Cache) Publish(ctx context.Context, channel string, payload interface{}) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}
	return c.client.Publish(ctx, channel, payload).Err()
}

// Subscribe returns ErrCacheDisabled when redis is not configured.
func (c *Cache) Subscribe(ctx context.Context, channel string) (*redis.PubSub, error) {
	if !c.Enabled() {
		return nil, ErrCacheDisabled
	}
	ps := c.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return ps, nil
}

func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
