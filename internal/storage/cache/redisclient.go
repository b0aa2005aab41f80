// Package cache shares provider tokens between processes through Redis.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tinywideclouds/go-apns-dispatcher/internal/codec"
	"github.com/tinywideclouds/go-apns-dispatcher/pkg/signer"
)

var _ signer.Cache = (*RedisClient)(nil)

// RedisClient is the shared provider token store. Dispatchers in different
// processes that sign with the same key reuse the token one of them signed.
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient connects and pings the server. The client is closed again if
// the ping fails.
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Fail fast if connection is bad
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisClient{rdb: rdb}, nil
}

// Get loads the shared token entry stored under key into dest. A missing or
// expired entry returns redis.Nil, which the provider treats as a miss.
func (c *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return codec.Unmarshal(val, dest)
}

// Set publishes a freshly signed token entry with the TTL the provider picks
// from its refresh interval.
func (c *RedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := codec.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// Del evicts the token entry under key, used when APNs rejected that token.
func (c *RedisClient) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}
