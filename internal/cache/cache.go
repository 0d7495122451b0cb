// Package cache реализует content-addressed кэш в памяти с TTL
// и гибридным LRU/LFU вытеснением по байтовому бюджету.
package cache

import (
	"sort"
	"sync"
	"time"
)

// entry — одна запись кэша со счётчиком обращений и оценкой размера.
type entry[T any] struct {
	value     T
	size      int64
	hits      int64
	createdAt time.Time
	expiresAt time.Time
}

// Stats — счётчики кэша для наблюдаемости и планирования ёмкости.
// Истечение TTL учитывается в Evictions наравне с вытеснением по бюджету.
type Stats struct {
	Hits           int64
	Misses         int64
	Evictions      int64
	Entries        int
	OccupancyBytes int64
}

// HitRate возвращает долю попаданий в [0, 1].
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache — кэш значений типа T с байтовым бюджетом.
// Экземпляры создаются явно и передаются зависимостям, глобального состояния нет.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]

	budgetBytes int64
	defaultTTL  time.Duration
	sweepSize   int

	occupancy int64
	hits      int64
	misses    int64
	evictions int64

	now func() time.Time
}

func New[T any](budgetBytes int64, defaultTTL time.Duration) *Cache[T] {
	const (
		defaultBudgetBytes = 64 << 20 // 64 MiB
		defaultTTLFallback = 30 * time.Minute
		defaultSweepSize   = 8
	)

	if budgetBytes <= 0 {
		budgetBytes = defaultBudgetBytes
	}
	if defaultTTL <= 0 {
		defaultTTL = defaultTTLFallback
	}

	return &Cache[T]{
		entries:     make(map[string]*entry[T]),
		budgetBytes: budgetBytes,
		defaultTTL:  defaultTTL,
		sweepSize:   defaultSweepSize,
		now:         time.Now,
	}
}

// Get возвращает значение по ключу. Просроченная запись удаляется лениво
// при обращении и считается промахом. Каждый вызов попутно проверяет
// небольшое случайное подмножество записей на истечение TTL.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()

	ent, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero T
		return zero, false
	}

	if c.now().After(ent.expiresAt) {
		c.removeLocked(key, ent)
		c.evictions++
		c.misses++
		var zero T
		return zero, false
	}

	ent.hits++
	c.hits++
	return ent.value, true
}

// Set кладёт значение с указанным TTL (0 — TTL по умолчанию).
// Если суммарный оценочный размер превышает бюджет, синхронно запускается
// вытеснение до 80% бюджета.
func (c *Cache[T]) Set(key string, value T, sizeBytes int64, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.occupancy -= old.size
	}

	now := c.now()
	c.entries[key] = &entry[T]{
		value:     value,
		size:      sizeBytes,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	c.occupancy += sizeBytes

	if c.occupancy > c.budgetBytes {
		c.evictLocked()
	}
}

// Stats возвращает текущие счётчики кэша.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:           c.hits,
		Misses:         c.misses,
		Evictions:      c.evictions,
		Entries:        len(c.entries),
		OccupancyBytes: c.occupancy,
	}
}

// sweepLocked лениво удаляет просроченные записи из случайного подмножества.
// Обход map в Go недетерминирован, поэтому выборка получается случайной
// без отдельного генератора.
func (c *Cache[T]) sweepLocked() {
	now := c.now()
	checked := 0
	for key, ent := range c.entries {
		if checked >= c.sweepSize {
			break
		}
		checked++

		if now.After(ent.expiresAt) {
			c.removeLocked(key, ent)
			c.evictions++
		}
	}
}

// evictLocked вытесняет записи до 80% бюджета: сначала с наименьшим числом
// обращений, при равенстве — самые старые.
func (c *Cache[T]) evictLocked() {
	type candidate struct {
		key string
		ent *entry[T]
	}

	candidates := make([]candidate, 0, len(c.entries))
	for key, ent := range c.entries {
		candidates = append(candidates, candidate{key: key, ent: ent})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ent.hits != candidates[j].ent.hits {
			return candidates[i].ent.hits < candidates[j].ent.hits
		}
		return candidates[i].ent.createdAt.Before(candidates[j].ent.createdAt)
	})

	target := c.budgetBytes * 80 / 100
	for _, cand := range candidates {
		if c.occupancy <= target {
			break
		}
		c.removeLocked(cand.key, cand.ent)
		c.evictions++
	}
}

func (c *Cache[T]) removeLocked(key string, ent *entry[T]) {
	delete(c.entries, key)
	c.occupancy -= ent.size
}
