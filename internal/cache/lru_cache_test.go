package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_Basic(t *testing.T) {
	cache := NewLRUCache[[]string](2)

	// Test Set and Get
	cache.Set("key1", []string{"img1", "img2"})
	value, exists := cache.Get("key1")
	assert.True(t, exists)
	assert.Equal(t, []string{"img1", "img2"}, value)

	// Test non-existent key
	_, exists = cache.Get("non-existent")
	assert.False(t, exists)
}

func TestLRUCache_Capacity(t *testing.T) {
	cache := NewLRUCache[string](2)

	cache.Set("key1", "value1")
	cache.Set("key2", "value2")

	// Add one more item, should evict key1
	cache.Set("key3", "value3")

	_, exists := cache.Get("key1")
	assert.False(t, exists)

	value, exists := cache.Get("key2")
	assert.True(t, exists)
	assert.Equal(t, "value2", value)

	value, exists = cache.Get("key3")
	assert.True(t, exists)
	assert.Equal(t, "value3", value)
	assert.Equal(t, 2, cache.Len())
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	cache := NewLRUCache[string](2)

	cache.Set("key1", "value1")
	cache.Set("key1", "newvalue1")

	value, exists := cache.Get("key1")
	assert.True(t, exists)
	assert.Equal(t, "newvalue1", value)
	assert.Equal(t, 1, cache.Len())
}

func TestLRUCache_LRUOrder(t *testing.T) {
	cache := NewLRUCache[string](2)

	cache.Set("key1", "value1")
	cache.Set("key2", "value2")

	// Access key1, making it most recently used
	cache.Get("key1")

	// Add new item, should evict key2 instead of key1
	cache.Set("key3", "value3")

	value, exists := cache.Get("key1")
	assert.True(t, exists)
	assert.Equal(t, "value1", value)

	_, exists = cache.Get("key2")
	assert.False(t, exists)

	value, exists = cache.Get("key3")
	assert.True(t, exists)
	assert.Equal(t, "value3", value)
}

func TestLRUCache_Disabled(t *testing.T) {
	cache := NewLRUCache[int](0)
	cache.Set("key1", 1)
	_, exists := cache.Get("key1")
	assert.False(t, exists)
	assert.Equal(t, 0, cache.Len())
}

func TestLRUCache_Purge(t *testing.T) {
	cache := NewLRUCache[int](4)
	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Purge()
	assert.Equal(t, 0, cache.Len())
	_, exists := cache.Get("a")
	assert.False(t, exists)
}

func TestLRUCache_Concurrent(t *testing.T) {
	cache := NewLRUCache[int](16)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("k%d", i%20)
				cache.Set(key, g)
				cache.Get(key)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, cache.Len(), 16)
}

func TestQueryKey(t *testing.T) {
	now := time.Unix(1700000000, 0)
	later := now.Add(time.Second)

	assert.Equal(t, QueryKey("q.dsc", now, 10, 3), QueryKey("q.dsc", now, 10, 3))
	assert.NotEqual(t, QueryKey("q.dsc", now, 10, 3), QueryKey("q.dsc", now, 10, 4))
	assert.NotEqual(t, QueryKey("q.dsc", now, 10, 3), QueryKey("q.dsc", later, 10, 3))
	assert.NotEqual(t, QueryKey("q.dsc", now, 10, 3), QueryKey("q.dsc", now, 11, 3))
	assert.NotEqual(t, QueryKey("a", now, 10, 1), QueryKey("b", now, 10, 1))
}
