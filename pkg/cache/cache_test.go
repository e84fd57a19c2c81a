package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string `json:"name"`
	Price int    `json:"price"`
}

// ==================== Memory ====================

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)

	var got item
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", item{Name: "Pixel", Price: 100}, 0))
	ok, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Pixel", got.Name)

	require.NoError(t, c.Delete(ctx, "k"))
	ok, _ = c.Get(ctx, "k", &got)
	assert.False(t, ok)

	s := c.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(2), s.Misses)
	assert.Equal(t, uint64(1), s.Sets)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "otp", "123456", 5*time.Minute))

	var code string
	now = now.Add(4 * time.Minute)
	ok, _ := c.Get(ctx, "otp", &code)
	assert.True(t, ok)
	assert.Equal(t, "123456", code)

	now = now.Add(2 * time.Minute)
	ok, _ = c.Get(ctx, "otp", &code)
	assert.False(t, ok, "过期后应未命中")
}

func TestMemory_NilDest(t *testing.T) {
	_, err := NewMemory(0).Get(context.Background(), "k", nil)
	assert.ErrorIs(t, err, ErrNilDest)
}

// ==================== GetOrLoad ====================

func TestGetOrLoad_CachesResult(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	var calls atomic.Int32

	load := func(ctx context.Context) (item, error) {
		calls.Add(1)
		return item{Name: "Galaxy", Price: 200}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := GetOrLoad(ctx, c, "product:1", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, 200, v.Price)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrLoad_ConcurrentMissesCollapse(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	load := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = GetOrLoad(ctx, c, "answer", time.Minute, load)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, 42, r)
	}
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestGetOrLoad_ErrorNotCached(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	boom := errors.New("db down")

	_, err := GetOrLoad(ctx, c, "k", time.Minute, func(ctx context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, err := GetOrLoad(ctx, c, "k", time.Minute, func(ctx context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

// ==================== Redis ====================

// 需要本地 Redis，不可用时跳过
func TestRedis_SetGetDelete(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	c := NewRedis(client, "phonebay-test:", time.Minute)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", item{Name: "Nokia"}, 0))
	var got item
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Nokia", got.Name)

	require.NoError(t, c.Delete(ctx, "k"))
	ok, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}
