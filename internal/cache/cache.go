package cache

import (
	"context"
	"time"
)

// Cache 字符串键值缓存接口
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Factory 缓存工厂函数类型
type Factory func(config Config) (Cache, error)

// 注册的缓存实现
var registry = make(map[string]Factory)

// RegisterCache 注册缓存实现
func RegisterCache(name string, factory Factory) {
	registry[name] = factory
}

// NewCache 创建缓存实例
// 未注册的类型回落到内存缓存
func NewCache(config Config) (Cache, error) {
	if factory, ok := registry[config.Type]; ok {
		return factory(config)
	}
	return NewMemoryCache(config)
}

// Config 缓存配置
type Config struct {
	// 缓存类型: "memory" 或 "redis"
	Type string
	// Redis连接地址
	RedisAddr string
	// Redis密码
	RedisPassword string
	// Redis数据库编号
	RedisDB int
	// 默认缓存过期时间
	DefaultTTL time.Duration
	// 内存缓存的自动清理间隔
	CleanupInterval time.Duration
}

// DefaultConfig 返回默认缓存配置
// 模型列表变化不频繁，默认缓存5分钟
func DefaultConfig() Config {
	return Config{
		Type:            "memory",
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Key 用冒号拼接各部分生成缓存键
func Key(prefix string, parts ...string) string {
	key := prefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}
