package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// memoryCache 进程内缓存，过期即失效，无跨进程失效通道
// 多副本部署下写入只能使本副本条目失效，陈旧性以 TTL 为上界
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemory 创建进程内缓存
func NewMemory() Cache {
	return &memoryCache{entries: make(map[string]memoryEntry)}
}

// Get 读取缓存，过期条目视为不存在并顺带清除
func (c *memoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && time.Now().After(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false
	}
	return entry.value, true
}

// Set 写入缓存
func (c *memoryCache) Set(_ context.Context, key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
}

// Delete 按键删除
func (c *memoryCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
}

// DeletePattern 按通配模式删除，模式语法同 path.Match
// 缓存键不含 '/'，通配符可跨越 ':' 分隔的所有段
func (c *memoryCache) DeletePattern(_ context.Context, pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			delete(c.entries, key)
		}
	}
}
