package assets

// Cache is an in-memory map that counts lookups.
type Cache[K comparable, V any] struct {
	data map[K]V

	hits   int
	misses int
}

// NewCache creates an empty cache.
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{data: make(map[K]V)}
}

// Get retrieves an item and records a hit or miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Set stores an item.
func (c *Cache[K, V]) Set(key K, v V) {
	c.data[key] = v
}

// Len returns the number of stored items.
func (c *Cache[K, V]) Len() int {
	return len(c.data)
}

// Clear drops every item and resets the counters.
func (c *Cache[K, V]) Clear() {
	clear(c.data)
	c.hits = 0
	c.misses = 0
}

// Stats returns lookup counters.
func (c *Cache[K, V]) Stats() (hits, misses int) {
	return c.hits, c.misses
}
