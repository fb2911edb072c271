package embedding

import (
	"container/list"
	"sync"
)

// cache is an LRU cache of embeddings keyed by text. Queries repeat a lot in
// practice; re-running the model for them is pure waste.
type cache struct {
	capacity int
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

type cacheItem struct {
	text string
	vec  []float32
}

func newCache(capacity int) *cache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *cache) get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[text]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheItem).vec, true
}

func (c *cache) put(text string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[text]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheItem).vec = vec
		return
	}
	c.entries[text] = c.order.PushFront(&cacheItem{text: text, vec: vec})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheItem).text)
	}
}
