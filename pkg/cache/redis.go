package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis 基于 go-redis 的缓存，所有 key 加统一前缀
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	stats  stats
}

// NewRedis 创建 Redis 缓存
func NewRedis(client *redis.Client, prefix string, defaultTTL time.Duration) *Redis {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &Redis{client: client, prefix: prefix, ttl: defaultTTL}
}

func (r *Redis) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if dest == nil {
		return false, ErrNilDest
	}
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.stats.misses.Add(1)
			return false, nil
		}
		r.stats.errors.Add(1)
		return false, fmt.Errorf("cache get: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		r.stats.errors.Add(1)
		return false, fmt.Errorf("cache unmarshal: %w", err)
	}
	r.stats.hits.Add(1)
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	data, err := json.Marshal(value)
	if err != nil {
		r.stats.errors.Add(1)
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, ttl).Err(); err != nil {
		r.stats.errors.Add(1)
		return fmt.Errorf("cache set: %w", err)
	}
	r.stats.sets.Add(1)
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		r.stats.errors.Add(1)
		return fmt.Errorf("cache delete: %w", err)
	}
	r.stats.deletes.Add(uint64(len(keys)))
	return nil
}

func (r *Redis) Stats() StatsSnapshot {
	return r.stats.snapshot()
}

// Ping 健康检查
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close 关闭连接
func (r *Redis) Close() error {
	return r.client.Close()
}
