package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ASCII-S/Memoride-Prototype/internal/backend"
	"github.com/ASCII-S/Memoride-Prototype/internal/database"
)

// stubClient 测试用的后端客户端
type stubClient struct {
	mu          sync.Mutex
	response    string
	streamParts []string
	listErr     error
	models      []string
	requests    []*backend.CompletionRequest
	listCalls   int
}

func (c *stubClient) GenerateCompletion(ctx context.Context, req *backend.CompletionRequest) (*backend.CompletionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return &backend.CompletionResult{Response: c.response, Done: true}, nil
}

func (c *stubClient) GenerateStream(ctx context.Context, req *backend.CompletionRequest) (<-chan backend.StreamEvent, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	parts := c.streamParts
	c.mu.Unlock()

	ch := make(chan backend.StreamEvent, len(parts)+1)
	for _, part := range parts {
		ch <- backend.StreamEvent{Response: part}
	}
	ch <- backend.StreamEvent{Done: true}
	close(ch)
	return ch, nil
}

func (c *stubClient) ListModels(ctx context.Context) ([]backend.ModelInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listCalls++
	if c.listErr != nil {
		return nil, c.listErr
	}
	infos := make([]backend.ModelInfo, len(c.models))
	for i, name := range c.models {
		infos[i] = backend.ModelInfo{Name: name}
	}
	return infos, nil
}

func (c *stubClient) Name() string { return "stub" }

func (c *stubClient) lastRequest() *backend.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil
	}
	return c.requests[len(c.requests)-1]
}

// newServiceDB 每个测试独享的sqlite数据库
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "svc.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}
