package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Memory 进程内缓存（sync.Map + 懒删除），未启用 Redis 或测试时使用
type Memory struct {
	items sync.Map
	ttl   time.Duration
	now   func() time.Time
	stats stats
}

// cacheItem 内部结构，包含值和过期时间
type cacheItem struct {
	data      []byte
	expiresAt time.Time
}

// NewMemory 创建进程内缓存
func NewMemory(defaultTTL time.Duration) *Memory {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &Memory{ttl: defaultTTL, now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	if dest == nil {
		return false, ErrNilDest
	}
	val, ok := m.items.Load(key)
	if !ok {
		m.stats.misses.Add(1)
		return false, nil
	}

	item := val.(cacheItem)
	if m.now().After(item.expiresAt) {
		m.items.Delete(key) // 懒删除
		m.stats.misses.Add(1)
		return false, nil
	}

	if err := json.Unmarshal(item.data, dest); err != nil {
		m.stats.errors.Add(1)
		return false, fmt.Errorf("cache unmarshal: %w", err)
	}
	m.stats.hits.Add(1)
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.ttl
	}
	data, err := json.Marshal(value)
	if err != nil {
		m.stats.errors.Add(1)
		return fmt.Errorf("cache marshal: %w", err)
	}
	m.items.Store(key, cacheItem{data: data, expiresAt: m.now().Add(ttl)})
	m.stats.sets.Add(1)
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.items.Delete(k)
	}
	m.stats.deletes.Add(uint64(len(keys)))
	return nil
}

func (m *Memory) Stats() StatsSnapshot {
	return m.stats.snapshot()
}
