package cache

import (
	"context"
	"time"
)

// noopCache 空实现，测试中用于绕过缓存
type noopCache struct{}

// NewNoop 创建空缓存
func NewNoop() Cache {
	return noopCache{}
}

func (noopCache) Get(context.Context, string) (string, bool)        { return "", false }
func (noopCache) Set(context.Context, string, string, time.Duration) {}
func (noopCache) Delete(context.Context, ...string)                  {}
func (noopCache) DeletePattern(context.Context, string)              {}
