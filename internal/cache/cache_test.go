package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, budget int64) (*Cache[string], *time.Time) {
	t.Helper()
	c := New[string](budget, time.Hour)
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCache_GetSet(t *testing.T) {
	c, _ := newTestCache(t, 1024)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", "value", 10, 0)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "value", got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
	assert.Equal(t, int64(10), stats.OccupancyBytes)
}

func TestCache_NamespaceKeysDoNotCollide(t *testing.T) {
	data := []byte("same image bytes")

	k1 := Key(NamespaceEmbedding, data)
	k2 := Key(NamespaceLabelDetection, data)
	assert.NotEqual(t, k1, k2)

	// одинаковые байты в одном пространстве имён дают одинаковый ключ
	assert.Equal(t, k1, Key(NamespaceEmbedding, data))
}

func TestCache_TTLExpiryIsLazy(t *testing.T) {
	c, now := newTestCache(t, 1024)

	c.Set("k", "value", 10, time.Minute)
	*now = now.Add(2 * time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, int64(0), stats.OccupancyBytes)
}

func TestCache_EvictionBringsOccupancyBelow80Percent(t *testing.T) {
	c, now := newTestCache(t, 1000)

	// десять записей по 100 байт заполняют бюджет до отказа
	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("k%d", i), "v", 100, 0)
		*now = now.Add(time.Second)
	}
	require.Equal(t, int64(1000), c.Stats().OccupancyBytes)

	// k9 получает обращения и не должен вытесняться первым
	_, ok := c.Get("k9")
	require.True(t, ok)

	c.Set("k10", "v", 100, 0)

	stats := c.Stats()
	assert.LessOrEqual(t, stats.OccupancyBytes, int64(800))
	assert.Greater(t, stats.Evictions, int64(0))

	// запись с обращениями пережила вытеснение
	_, ok = c.Get("k9")
	assert.True(t, ok)

	// самая старая запись без обращений ушла первой
	_, ok = c.Get("k0")
	assert.False(t, ok)
}

func TestCache_SetReplacesExistingEntry(t *testing.T) {
	c, _ := newTestCache(t, 1024)

	c.Set("k", "old", 100, 0)
	c.Set("k", "new", 50, 0)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
	assert.Equal(t, int64(50), c.Stats().OccupancyBytes)
}
