package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func storeFactories() map[string]func(t *testing.T, clock *fakeClock) Store {
	return map[string]func(t *testing.T, clock *fakeClock) Store{
		"memory": func(_ *testing.T, clock *fakeClock) Store {
			return NewMemory(WithClock(clock.Now))
		},
		"sqlite": func(t *testing.T, clock *fakeClock) Store {
			store, err := NewSQLite(context.Background(), ":memory:", WithClock(clock.Now))
			require.NoError(t, err)
			return store
		},
	}
}

func TestStoreSetGetExpire(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			store := factory(t, clock)
			defer store.Close()

			_, ok, err := store.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, "series", []byte("payload"), 30*time.Minute))

			data, ok, err := store.Get(ctx, "series")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("payload"), data)

			clock.Advance(29 * time.Minute)
			_, ok, err = store.Get(ctx, "series")
			require.NoError(t, err)
			assert.True(t, ok, "entry should still be fresh")

			clock.Advance(time.Minute)
			_, ok, err = store.Get(ctx, "series")
			require.NoError(t, err)
			assert.False(t, ok, "entry should expire at its TTL")
		})
	}
}

func TestStoreOverwrite(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t, newFakeClock())
			defer store.Close()

			require.NoError(t, store.Set(ctx, "k", []byte("one"), time.Hour))
			require.NoError(t, store.Set(ctx, "k", []byte("two"), time.Hour))

			data, ok, err := store.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "two", string(data))
		})
	}
}

func TestStoreDeleteExpired(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			store := factory(t, clock)
			defer store.Close()

			require.NoError(t, store.Set(ctx, "news", []byte("a"), 30*time.Minute))
			require.NoError(t, store.Set(ctx, "market", []byte("b"), 24*time.Hour))

			clock.Advance(time.Hour)
			deleted, err := store.DeleteExpired(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), deleted)

			_, ok, err := store.Get(ctx, "market")
			require.NoError(t, err)
			assert.True(t, ok)

			deleted, err = store.DeleteExpired(ctx)
			require.NoError(t, err)
			assert.Zero(t, deleted)
		})
	}
}

func TestMemoryClosed(t *testing.T) {
	store := NewMemory()
	require.NoError(t, store.Close())

	_, _, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.Set(context.Background(), "k", nil, time.Minute), ErrClosed)
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	store, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "k", []byte("kept"), time.Hour))
	require.NoError(t, store.Close())

	reopened, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	data, ok, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", string(data))
}

func TestNewSQLiteEmptyPath(t *testing.T) {
	_, err := NewSQLite(context.Background(), "")
	assert.Error(t, err)
}

func TestNewSelectsDriver(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, "memory", "", zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, store)

	store, err = New(ctx, "redis", "", nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, store)

	store, err = New(ctx, "sqlite", ":memory:", nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, store)
	require.NoError(t, store.Close())
}

func TestKey(t *testing.T) {
	a, err := Key("priceindex.Fetch", "PCU326211326211", 24)
	require.NoError(t, err)
	b, err := Key("priceindex.Fetch", "PCU326211326211", 24)
	require.NoError(t, err)
	c, err := Key("priceindex.Fetch", "PCU326211326211", 36)
	require.NoError(t, err)
	d, err := Key("news.Search", "PCU326211326211", 24)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Contains(t, a, "priceindex.Fetch:")

	m1, err := Key("fn", map[string]int{"a": 1, "b": 2, "c": 3})
	require.NoError(t, err)
	m2, err := Key("fn", map[string]int{"c": 3, "b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
}

type cachedPoint struct {
	Label string
	Value float64
}

func TestMemoCachesValues(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	memo := NewMemo[[]cachedPoint](NewMemory(WithClock(clock.Now)), "test.Points", time.Hour, zap.NewNop())

	calls := 0
	compute := func(context.Context) ([]cachedPoint, bool, error) {
		calls++
		return []cachedPoint{{Label: "2025-01", Value: 181.5}}, true, nil
	}

	first, err := memo.Do(ctx, []interface{}{"a"}, compute)
	require.NoError(t, err)
	second, err := memo.Do(ctx, []interface{}{"a"}, compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	_, err = memo.Do(ctx, []interface{}{"b"}, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "different arguments must miss")

	clock.Advance(time.Hour)
	_, err = memo.Do(ctx, []interface{}{"a"}, compute)
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "expired entries must be recomputed")
}

func TestMemoSkipsUncacheableAndErrors(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	memo := NewMemo[string](store, "test.Value", time.Hour, nil)

	value, err := memo.Do(ctx, nil, func(context.Context) (string, bool, error) {
		return "fallback", false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fallback", value)
	assert.Zero(t, store.Len())

	boom := errors.New("boom")
	_, err = memo.Do(ctx, nil, func(context.Context) (string, bool, error) {
		return "", true, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, store.Len())
}

func TestMemoWithoutStore(t *testing.T) {
	memo := NewMemo[int](nil, "test.Nil", time.Hour, nil)

	calls := 0
	for i := 0; i < 2; i++ {
		value, err := memo.Do(context.Background(), nil, func(context.Context) (int, bool, error) {
			calls++
			return 7, true, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, value)
	}
	assert.Equal(t, 2, calls)
}

func TestCleanupJob(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemory(WithClock(clock.Now))
	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	job := NewCleanupJob(store, nil)
	assert.Equal(t, "cache_cleanup", job.Name())

	clock.Advance(2 * time.Minute)
	require.NoError(t, job.Run())
	assert.Zero(t, store.Len())

	require.NoError(t, store.Close())
	assert.ErrorIs(t, job.Run(), ErrClosed)
}
