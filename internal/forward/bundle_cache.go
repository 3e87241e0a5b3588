package forward

import (
	"sync"
	"time"

	"qtbridge/internal/qq"
)

// bundleCacheEntry 已展开的合并转发内容
type bundleCacheEntry struct {
	messages []*qq.ForwardMessage
	expires  time.Time
}

// BundleCache 合并转发展开结果的 TTL 缓存
// 查看器每次打开都要展开资源，展开要打好几个来回的 RPC，缓存 15 分钟
type BundleCache struct {
	mu     sync.RWMutex
	ttl    time.Duration
	values map[string]bundleCacheEntry
}

// NewBundleCache 创建缓存，ttl 非正时使用 15 分钟默认值
func NewBundleCache(ttl time.Duration) *BundleCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &BundleCache{
		ttl:    ttl,
		values: make(map[string]bundleCacheEntry),
	}
}

// Get 按 UUID 取缓存的展开结果
func (c *BundleCache) Get(uuid string) ([]*qq.ForwardMessage, bool) {
	c.mu.RLock()
	entry, ok := c.values[uuid]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expires) {
		c.mu.Lock()
		delete(c.values, uuid)
		c.mu.Unlock()
		return nil, false
	}
	return entry.messages, true
}

// Set 写入展开结果
func (c *BundleCache) Set(uuid string, messages []*qq.ForwardMessage) {
	c.mu.Lock()
	c.values[uuid] = bundleCacheEntry{
		messages: messages,
		expires:  time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}
