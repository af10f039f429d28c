package preview

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chathub/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	cachePrefix      = "chathub:preview:"
	positiveTTL      = 24 * time.Hour
	negativeTTL      = 10 * time.Minute
	negativeSentinel = "null"
)

// RedisCache stores previews as JSON strings keyed by a hash of the URL.
type RedisCache struct {
	cli *redis.Client
}

// ConnectRedis connects to the Redis server and pings it to ensure the
// connection is working.
func ConnectRedis(ctx context.Context, addr, password string) (*RedisCache, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisCache(cli), nil
}

func NewRedisCache(cli *redis.Client) *RedisCache {
	return &RedisCache{cli: cli}
}

func cacheKey(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL))
	return cachePrefix + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, rawURL string) (*models.LinkPreview, bool, error) {
	val, err := c.cli.Get(ctx, cacheKey(rawURL)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get: %w", err)
	}
	if val == negativeSentinel {
		return nil, true, nil
	}
	var p models.LinkPreview
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, false, fmt.Errorf("decode cached preview: %w", err)
	}
	return &p, true, nil
}

func (c *RedisCache) Set(ctx context.Context, rawURL string, p *models.LinkPreview) error {
	if p == nil {
		return c.cli.Set(ctx, cacheKey(rawURL), negativeSentinel, negativeTTL).Err()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	if err := c.cli.Set(ctx, cacheKey(rawURL), data, positiveTTL).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.cli.Close()
}
