// 包 lru：进程内定长 LRU 缓存
package lru

import (
	"container/list"
	"sync"
	"time"
)

// 文档注释：定长 LRU 缓存（可选 TTL）
// 背景：热点店铺详情在短周期内被重复访问，进程内缓存避免重复请求远端接口。
// 约束：容量 <=0 时按 1 处理；ttl 为 0 表示永不过期；Get 会刷新最近使用顺序，Peek 不会。
type LRU[K comparable, V any] struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[K]*list.Element
	now  func() time.Time
}

type entry[K comparable, V any] struct {
	k   K
	v   V
	exp time.Time
}

func New[K comparable, V any](capacity int) *LRU[K, V] {
	return NewWithTTL[K, V](capacity, 0)
}

func NewWithTTL[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRU[K, V]{cap: capacity, ttl: ttl, lst: list.New(), dict: make(map[K]*list.Element), now: time.Now}
}

func (c *LRU[K, V]) expired(it entry[K, V]) bool {
	return c.ttl > 0 && !c.now().Before(it.exp)
}

func (c *LRU[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		it := e.Value.(entry[K, V])
		if !c.expired(it) {
			c.lst.MoveToFront(e)
			return it.v, true
		}
		c.lst.Remove(e)
		delete(c.dict, k)
	}
	var zero V
	return zero, false
}

// Peek：读取但不改变使用顺序
func (c *LRU[K, V]) Peek(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		if it := e.Value.(entry[K, V]); !c.expired(it) {
			return it.v, true
		}
	}
	var zero V
	return zero, false
}

func (c *LRU[K, V]) Set(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}
	if e, ok := c.dict[k]; ok {
		e.Value = entry[K, V]{k: k, v: v, exp: exp}
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(entry[K, V]{k: k, v: v, exp: exp})
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		if back == nil {
			break
		}
		delete(c.dict, back.Value.(entry[K, V]).k)
		c.lst.Remove(back)
	}
}

// Update：在锁内读-改-写单个键，fn 返回 false 时不写入
func (c *LRU[K, V]) Update(k K, fn func(old V, ok bool) (V, bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var old V
	e, ok := c.dict[k]
	if ok {
		it := e.Value.(entry[K, V])
		if c.expired(it) {
			c.lst.Remove(e)
			delete(c.dict, k)
			ok = false
		} else {
			old = it.v
		}
	}
	v, write := fn(old, ok)
	if !write {
		return
	}
	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}
	if ok {
		e.Value = entry[K, V]{k: k, v: v, exp: exp}
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(entry[K, V]{k: k, v: v, exp: exp})
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(entry[K, V]).k)
		c.lst.Remove(back)
	}
}

func (c *LRU[K, V]) Remove(k K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		c.lst.Remove(e)
		delete(c.dict, k)
	}
}

func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}

func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lst.Init()
	c.dict = make(map[K]*list.Element)
}
