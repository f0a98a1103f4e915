package core

import "sort"

// Cache is a keyed store of chunk geometry. It never expires entries on its own; callers
// evict by not carrying keys forward (Retain).
type Cache[T any] struct {
	entries map[ChunkKey]T
}

func NewCache[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[ChunkKey]T)}
}

func (c *Cache[T]) Get(key ChunkKey) (T, bool) {
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache[T]) Has(key ChunkKey) bool {
	_, ok := c.entries[key]
	return ok
}

// Insert stores v under key, replacing any previous value.
func (c *Cache[T]) Insert(key ChunkKey, v T) {
	c.entries[key] = v
}

// Remove deletes key and returns what was stored.
func (c *Cache[T]) Remove(key ChunkKey) (T, bool) {
	v, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	return v, ok
}

func (c *Cache[T]) Len() int {
	return len(c.entries)
}

// Keys returns the stored keys in sorted order.
func (c *Cache[T]) Keys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Range calls fn for every entry until fn returns false. Order is unspecified.
func (c *Cache[T]) Range(fn func(key ChunkKey, v T) bool) {
	for k, v := range c.entries {
		if !fn(k, v) {
			return
		}
	}
}

// Retain keeps the entries for which keep returns true and returns the rest.
func (c *Cache[T]) Retain(keep func(key ChunkKey) bool) map[ChunkKey]T {
	dropped := make(map[ChunkKey]T)
	for k, v := range c.entries {
		if !keep(k) {
			dropped[k] = v
			delete(c.entries, k)
		}
	}
	return dropped
}
