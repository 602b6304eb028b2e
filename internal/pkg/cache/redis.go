package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"k8s.io/klog/v2"
)

// redisCache Redis 缓存实现，多副本部署时提供共享失效
type redisCache struct {
	client *redis.Client
	prefix string
}

// RedisOptions Redis 连接参数
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis 创建 Redis 缓存，连接失败返回错误
func NewRedis(opts RedisOptions) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &redisCache{client: client, prefix: opts.Prefix}, nil
}

func (c *redisCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			klog.Errorf("redis get %s: %v", key, err)
		}
		return "", false
	}
	return value, true
}

func (c *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		klog.Errorf("redis set %s: %v", key, err)
	}
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, c.prefix+key)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		klog.Errorf("redis del: %v", err)
	}
}

func (c *redisCache) DeletePattern(ctx context.Context, pattern string) {
	iter := c.client.Scan(ctx, 0, c.prefix+pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			klog.Errorf("redis del %s: %v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		klog.Errorf("redis scan %s: %v", pattern, err)
	}
}
