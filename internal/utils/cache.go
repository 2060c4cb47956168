package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/patrickmn/go-cache"
)

// TTLCache 带过期时间的缓存
type TTLCache struct {
	c *cache.Cache
}

// NewTTLCache ttl <= 0 时返回 nil，调用方按未启用处理
func NewTTLCache(ttl time.Duration) *TTLCache {
	if ttl <= 0 {
		return nil
	}
	return &TTLCache{c: cache.New(ttl, 2*ttl)}
}

// Get 获取缓存值
func (t *TTLCache) Get(key string) (interface{}, bool) {
	if t == nil {
		return nil, false
	}
	return t.c.Get(key)
}

// Set 设置缓存值
func (t *TTLCache) Set(key string, value interface{}) {
	if t == nil {
		return
	}
	t.c.Set(key, value, cache.DefaultExpiration)
}

// LRUCache 定长 LRU 缓存，线程安全
type LRUCache[K comparable, V any] struct {
	storage *lru.Cache[K, V]
}

// NewLRUCache size 是最大缓存条数
func NewLRUCache[K comparable, V any](size int) *LRUCache[K, V] {
	if size <= 0 {
		size = 1
	}
	c, _ := lru.New[K, V](size)
	return &LRUCache[K, V]{storage: c}
}

func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	return c.storage.Get(key)
}

func (c *LRUCache[K, V]) Add(key K, value V) {
	c.storage.Add(key, value)
}
