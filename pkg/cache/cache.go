// Package cache 提供 cache-aside 缓存：进程内实现与 Redis 实现共用同一接口
package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache 缓存接口，值统一 JSON 序列化
type Cache interface {
	// Get 读取缓存到 dest，命中返回 true
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	// Set 写入缓存，ttl<=0 使用默认 TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Stats() StatsSnapshot
}

// ErrNilDest Get 的 dest 不能为空
var ErrNilDest = errors.New("cache: nil destination")

// stats 命中统计
type stats struct {
	hits, misses, sets, deletes, errors atomic.Uint64
}

// StatsSnapshot 统计快照
type StatsSnapshot struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Sets    uint64  `json:"sets"`
	Deletes uint64  `json:"deletes"`
	Errors  uint64  `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

func (s *stats) snapshot() StatsSnapshot {
	hits, misses := s.hits.Load(), s.misses.Load()
	snap := StatsSnapshot{
		Hits:    hits,
		Misses:  misses,
		Sets:    s.sets.Load(),
		Deletes: s.deletes.Load(),
		Errors:  s.errors.Load(),
	}
	if total := hits + misses; total > 0 {
		snap.HitRate = float64(hits) / float64(total) * 100
	}
	return snap
}

var loads singleflight.Group

// GetOrLoad cache-aside 读取：
// 1. 命中直接返回
// 2. 未命中时同 key 的并发加载合并为一次（singleflight）
// 3. 加载成功写回缓存；写缓存失败不影响返回值
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var out T
	if ok, err := c.Get(ctx, key, &out); err == nil && ok {
		return out, nil
	}

	v, err, _ := loads.Do(key, func() (interface{}, error) {
		val, err := load(ctx)
		if err != nil {
			return val, err
		}
		_ = c.Set(ctx, key, val, ttl)
		return val, nil
	})
	if err != nil {
		return out, err
	}
	return v.(T), nil
}
