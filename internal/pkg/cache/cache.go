package cache

import (
	"context"
	"fmt"
	"time"
)

// 缓存 TTL
const (
	PromptTTL       = 600 * time.Second // 组合结果缓存 10 分钟
	TenantConfigTTL = 300 * time.Second // 租户配置缓存 5 分钟
)

// Cache 键值缓存抽象，注入到各 Service，测试可替换为确定性实现
// 多副本部署可换用共享实现（Redis）而无需改动调用方
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	DeletePattern(ctx context.Context, pattern string)
}

// PromptKey 组合结果缓存键
func PromptKey(tenantID uint, flowKey string) string {
	return fmt.Sprintf("prompt:%d:%s", tenantID, flowKey)
}

// PromptPattern 租户所有组合结果的通配键
func PromptPattern(tenantID uint) string {
	return fmt.Sprintf("prompt:%d:*", tenantID)
}

// TenantConfigKey 租户配置缓存键
func TenantConfigKey(tenantID uint) string {
	return fmt.Sprintf("config:%d", tenantID)
}
