package cache

import (
	"container/list"
	"sync"
	"time"
)

// DefaultCapacity 默认最多缓存的条目数
const DefaultCapacity = 256

// Entry 缓存条目
type Entry[V any] struct {
	Key       string    `json:"fingerprint"`
	Value     V         `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	HitCount  int64     `json:"hit_count"`
}

// Stats 缓存统计
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// LRU 按条目数限制容量的 LRU 缓存，所有操作由同一把锁保护
type LRU[V any] struct {
	mu        sync.Mutex
	capacity  int
	ll        *list.List
	items     map[string]*list.Element
	hits      int64
	misses    int64
	evictions int64
	now       func() time.Time
}

// New 创建缓存，capacity <= 0 时使用 DefaultCapacity
func New[V any](capacity int) *LRU[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LRU[V]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get 命中时移动到队头并累加命中次数
func (c *LRU[V]) Get(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.ll.MoveToFront(elem)
		entry := elem.Value.(*Entry[V])
		entry.HitCount++
		c.hits++
		return *entry, true
	}
	c.misses++
	return Entry[V]{}, false
}

// Peek 读取但不影响 LRU 顺序与统计
func (c *LRU[V]) Peek(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		return *elem.Value.(*Entry[V]), true
	}
	return Entry[V]{}, false
}

// Put 写入或覆盖条目，超出容量时淘汰最久未使用的条目
func (c *LRU[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*Entry[V])
		entry.Value = value
		entry.CreatedAt = c.now()
		c.ll.MoveToFront(elem)
		return
	}
	entry := &Entry[V]{Key: key, Value: value, CreatedAt: c.now()}
	c.items[key] = c.ll.PushFront(entry)
	c.evictIfNeeded()
}

func (c *LRU[V]) evictIfNeeded() {
	for c.ll.Len() > c.capacity {
		elem := c.ll.Back()
		entry := elem.Value.(*Entry[V])
		delete(c.items, entry.Key)
		c.ll.Remove(elem)
		c.evictions++
	}
}

// Range 从最近使用到最久未使用依次遍历，fn 返回 false 时停止。
// 遍历期间持有锁，fn 中不能再调用缓存方法。
func (c *LRU[V]) Range(fn func(Entry[V]) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for elem := c.ll.Front(); elem != nil; elem = elem.Next() {
		if !fn(*elem.Value.(*Entry[V])) {
			return
		}
	}
}

// Len 当前条目数
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Clear 清空条目与统计
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// Stats 返回统计快照
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Size:      c.ll.Len(),
		Capacity:  c.capacity,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
