package cache

import (
	"context"
	"encoding/json"
	"time"
)

// modelListPrefix 模型列表缓存键前缀
const modelListPrefix = "models"

// ModelListCache 模型列表缓存
// 按后端名隔离，底层存储失败按未命中处理，列表拉取方兜底
type ModelListCache struct {
	store Cache
	ttl   time.Duration
}

// NewModelListCache 创建模型列表缓存
func NewModelListCache(store Cache, ttl time.Duration) *ModelListCache {
	if ttl == 0 {
		ttl = DefaultConfig().DefaultTTL
	}
	return &ModelListCache{store: store, ttl: ttl}
}

// Get 读取某后端的缓存模型列表
func (c *ModelListCache) Get(ctx context.Context, backendName string) ([]string, bool) {
	raw, found, err := c.store.Get(ctx, Key(modelListPrefix, backendName))
	if err != nil || !found {
		return nil, false
	}

	var models []string
	if err := json.Unmarshal([]byte(raw), &models); err != nil {
		return nil, false
	}
	return models, true
}

// Set 写入某后端的模型列表
func (c *ModelListCache) Set(ctx context.Context, backendName string, models []string) {
	raw, err := json.Marshal(models)
	if err != nil {
		return
	}
	_ = c.store.Set(ctx, Key(modelListPrefix, backendName), string(raw), c.ttl)
}

// Invalidate 主动失效某后端的模型列表
func (c *ModelListCache) Invalidate(ctx context.Context, backendName string) {
	_ = c.store.Delete(ctx, Key(modelListPrefix, backendName))
}
