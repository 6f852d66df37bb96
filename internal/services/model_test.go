package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ASCII-S/Memoride-Prototype/internal/backend"
	"github.com/ASCII-S/Memoride-Prototype/internal/cache"
)

func newModelLists(t *testing.T) *cache.ModelListCache {
	t.Helper()
	store, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)
	return cache.NewModelListCache(store, time.Minute)
}

// TestListModelsCached 第二次查询走缓存，不再访问后端
func TestListModelsCached(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{models: []string{"llama3:8b", "qwen2"}}
	svc := NewModelService(client, newModelLists(t), nil)

	models, err := svc.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:8b", "qwen2"}, models)
	assert.Equal(t, 1, client.listCalls)

	models, err = svc.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:8b", "qwen2"}, models)
	assert.Equal(t, 1, client.listCalls, "缓存命中时不应再调用后端")
}

// TestListModelsError 后端失败时错误透传且不写缓存
func TestListModelsError(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{listErr: backend.NewBackendError(backend.ErrCodeServerError, "boom")}
	svc := NewModelService(client, newModelLists(t), nil)

	_, err := svc.ListModels(ctx)
	assert.Error(t, err)

	client.mu.Lock()
	client.listErr = nil
	client.models = []string{"m1"}
	client.mu.Unlock()

	models, err := svc.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, models)
}

// TestRefreshBypassesCache 强制刷新绕过缓存
func TestRefreshBypassesCache(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{models: []string{"old"}}
	svc := NewModelService(client, newModelLists(t), nil)

	_, err := svc.ListModels(ctx)
	require.NoError(t, err)

	client.mu.Lock()
	client.models = []string{"new"}
	client.mu.Unlock()

	models, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, models)
	assert.Equal(t, 2, client.listCalls)
}

// TestListModelsWithoutCache 不配置缓存时每次都访问后端
func TestListModelsWithoutCache(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{models: []string{"m"}}
	svc := NewModelService(client, nil, nil)

	_, err := svc.ListModels(ctx)
	require.NoError(t, err)
	_, err = svc.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, client.listCalls)
}
