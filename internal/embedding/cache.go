package embedding

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// EmbeddingCache is an LRU cache for text embeddings keyed by text. It is safe for
// concurrent use.
type EmbeddingCache struct {
	cache *lru.Cache[string, []float32]
}

// NewEmbeddingCache creates a new cache with the given capacity. A non-positive
// capacity falls back to 1024 entries.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity <= 0 {
		capacity = 1024
	}
	c, err := lru.New[string, []float32](capacity)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &EmbeddingCache{cache: c}
}

// Get returns the cached embedding for key if present.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	return c.cache.Get(key)
}

// Set stores the embedding for key, evicting the least recently used entry if at capacity.
func (c *EmbeddingCache) Set(key string, value []float32) {
	c.cache.Add(key, value)
}

// Len returns the number of cached embeddings.
func (c *EmbeddingCache) Len() int {
	return c.cache.Len()
}
