package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ASCII-S/Memoride-Prototype/api/middleware"
	"github.com/ASCII-S/Memoride-Prototype/api/model"
	"github.com/ASCII-S/Memoride-Prototype/internal/backend"
	"github.com/ASCII-S/Memoride-Prototype/internal/database"
	"github.com/ASCII-S/Memoride-Prototype/internal/repository"
	"github.com/ASCII-S/Memoride-Prototype/internal/services"
	"github.com/ASCII-S/Memoride-Prototype/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeClient 测试用的后端客户端
type fakeClient struct {
	response string
	models   []string
}

func (c *fakeClient) GenerateCompletion(ctx context.Context, req *backend.CompletionRequest) (*backend.CompletionResult, error) {
	return &backend.CompletionResult{Response: c.response, Done: true}, nil
}

func (c *fakeClient) GenerateStream(ctx context.Context, req *backend.CompletionRequest) (<-chan backend.StreamEvent, error) {
	ch := make(chan backend.StreamEvent, 2)
	ch <- backend.StreamEvent{Response: c.response}
	ch <- backend.StreamEvent{Done: true}
	close(ch)
	return ch, nil
}

func (c *fakeClient) ListModels(ctx context.Context) ([]backend.ModelInfo, error) {
	infos := make([]backend.ModelInfo, len(c.models))
	for i, name := range c.models {
		infos[i] = backend.ModelInfo{Name: name}
	}
	return infos, nil
}

func (c *fakeClient) Name() string { return "fake" }

// testEnv 组装一套带内存数据库的完整路由
type testEnv struct {
	router *gin.Engine
	client *fakeClient
	batch  *services.BatchService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "api.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	client := &fakeClient{
		response: `{"cards":[{"q":"问","a":"答"}]}`,
		models:   []string{"llama3:8b", "qwen2"},
	}

	archive, err := storage.NewLocalArchive(storage.LocalConfig{Path: filepath.Join(t.TempDir(), "archive")})
	require.NoError(t, err)

	library, err := services.NewPromptLibrary(filepath.Join(t.TempDir(), "prompts"))
	require.NoError(t, err)

	chatSvc := services.NewChatService(client, repository.NewChatRepositoryWithDB(db), "llama3")
	modelSvc := services.NewModelService(client, nil, nil)
	batchSvc := services.NewBatchService(client, repository.NewBatchRepositoryWithDB(db), archive,
		"llama3", filepath.Join(t.TempDir(), "out"))

	chatHandler := NewChatHandler(chatSvc)
	modelHandler := NewModelHandler(modelSvc, client.Name())
	promptHandler := NewPromptHandler(library)
	batchHandler := NewBatchHandler(batchSvc, library)

	router := gin.New()
	router.Use(middleware.SetTraceID())
	api := router.Group("/api")
	{
		api.POST("/chats", chatHandler.CreateChat)
		api.GET("/chats", chatHandler.ListChats)
		api.GET("/chats/:session_id", chatHandler.GetChatHistory)
		api.DELETE("/chats/:session_id", chatHandler.DeleteChat)
		api.POST("/chats/:session_id/messages", chatHandler.PostMessage)
		api.POST("/chats/:session_id/stream", chatHandler.StreamMessage)
		api.POST("/completion", chatHandler.Completion)
		api.GET("/models", modelHandler.ListModels)
		api.GET("/prompts", promptHandler.ListPrompts)
		api.GET("/prompts/:name", promptHandler.GetPrompt)
		api.POST("/prompts", promptHandler.SavePrompt)
		api.POST("/batches", batchHandler.StartBatch)
		api.GET("/batches", batchHandler.ListBatches)
		api.GET("/batches/:id", batchHandler.GetBatch)
		api.POST("/batches/:id/cancel", batchHandler.CancelBatch)
		api.GET("/batches/:id/outputs/:key", batchHandler.DownloadOutput)
	}

	return &testEnv{router: router, client: client, batch: batchSvc}
}

// doJSON 发送JSON请求并解析通用响应
func (e *testEnv) doJSON(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, *model.Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	resp := &model.Response{}
	if strings.Contains(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), resp))
	}
	return w, resp
}

// decodeData 把响应中的data字段解析到目标结构
func decodeData(t *testing.T, resp *model.Response, out interface{}) {
	t.Helper()
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

// TestChatEndpoints 会话的创建、发消息、历史和删除
func TestChatEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.client.response = "你好"

	w, resp := env.doJSON(t, http.MethodPost, "/api/chats", model.CreateChatRequest{Title: "测试会话"})
	require.Equal(t, http.StatusOK, w.Code)

	var session model.ChatSessionInfo
	decodeData(t, resp, &session)
	require.NotEmpty(t, session.SessionID)
	assert.Equal(t, "llama3", session.Model)

	w, resp = env.doJSON(t, http.MethodPost, "/api/chats/"+session.SessionID+"/messages",
		gin.H{"content": "问题"})
	require.Equal(t, http.StatusOK, w.Code)

	var answer model.ChatAnswerResponse
	decodeData(t, resp, &answer)
	assert.Equal(t, "你好", answer.Answer)

	w, resp = env.doJSON(t, http.MethodGet, "/api/chats/"+session.SessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var history model.ChatHistoryResponse
	decodeData(t, resp, &history)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "user", history.Messages[0].Role)
	assert.Equal(t, "assistant", history.Messages[1].Role)

	w, _ = env.doJSON(t, http.MethodDelete, "/api/chats/"+session.SessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = env.doJSON(t, http.MethodGet, "/api/chats/"+session.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestChatStreamEndpoint SSE流式回复
func TestChatStreamEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.client.response = "流式内容"

	_, resp := env.doJSON(t, http.MethodPost, "/api/chats", model.CreateChatRequest{})
	var session model.ChatSessionInfo
	decodeData(t, resp, &session)

	w, _ := env.doJSON(t, http.MethodPost, "/api/chats/"+session.SessionID+"/stream",
		gin.H{"content": "问题"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, w.Body.String(), "流式内容")
}

// TestCompletionEndpoint 单次补全
func TestCompletionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.client.response = "补全"

	w, resp := env.doJSON(t, http.MethodPost, "/api/completion", model.CompletionRequest{Prompt: "写一句话"})
	require.Equal(t, http.StatusOK, w.Code)

	var result model.CompletionResponse
	decodeData(t, resp, &result)
	assert.Equal(t, "补全", result.Response)

	// prompt为必填项
	w, _ = env.doJSON(t, http.MethodPost, "/api/completion", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestModelsEndpoint 模型列表
func TestModelsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.doJSON(t, http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list model.ModelListResponse
	decodeData(t, resp, &list)
	assert.Equal(t, "fake", list.Backend)
	assert.Equal(t, []string{"llama3:8b", "qwen2"}, list.Models)
}

// TestPromptEndpoints 提示词的保存、读取和列举
func TestPromptEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.doJSON(t, http.MethodPost, "/api/prompts",
		model.PromptSaveRequest{Name: "学习助手", Content: "你是学习助手"})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := env.doJSON(t, http.MethodGet, "/api/prompts/学习助手", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var prompt model.PromptResponse
	decodeData(t, resp, &prompt)
	assert.Equal(t, "你是学习助手", prompt.Content)

	w, resp = env.doJSON(t, http.MethodGet, "/api/prompts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list model.PromptListResponse
	decodeData(t, resp, &list)
	assert.Contains(t, list.Prompts, "学习助手")

	w, _ = env.doJSON(t, http.MethodGet, "/api/prompts/不存在", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestBatchEndpoints 批处理的发起、查询和产出下载
func TestBatchEndpoints(t *testing.T) {
	env := newTestEnv(t)

	dir := t.TempDir()
	var sb strings.Builder
	sb.WriteString("# 章节\n")
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&sb, "正文第%d行\n", i+1)
	}
	doc := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(doc, []byte(sb.String()), 0644))

	w, resp := env.doJSON(t, http.MethodPost, "/api/batches",
		model.StartBatchRequest{Files: []string{doc}})
	require.Equal(t, http.StatusOK, w.Code)

	var run model.BatchRunInfo
	decodeData(t, resp, &run)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, "llama3", run.Model)

	// 轮询直到运行结束
	var status model.BatchStatusResponse
	require.Eventually(t, func() bool {
		w, resp := env.doJSON(t, http.MethodGet, "/api/batches/"+run.ID, nil)
		if w.Code != http.StatusOK {
			return false
		}
		decodeData(t, resp, &status)
		return status.Run.Status == "completed" || status.Run.Status == "failed"
	}, 10*time.Second, 20*time.Millisecond)

	assert.Equal(t, "completed", status.Run.Status)
	require.Len(t, status.Jobs, 1)
	assert.Equal(t, 1, status.Jobs[0].CardCount)
	require.Len(t, status.Outputs, 1)

	// 下载归档产出
	name := path.Base(status.Outputs[0])
	w, _ = env.doJSON(t, http.MethodGet, "/api/batches/"+run.ID+"/outputs/"+name, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "问题,答案")

	// 列表包含这次运行
	w, resp = env.doJSON(t, http.MethodGet, "/api/batches", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list model.BatchListResponse
	decodeData(t, resp, &list)
	assert.EqualValues(t, 1, list.Total)
}

// TestBatchValidation 非法的批处理请求被拒绝
func TestBatchValidation(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.doJSON(t, http.MethodPost, "/api/batches", gin.H{"files": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.doJSON(t, http.MethodPost, "/api/batches",
		model.StartBatchRequest{Files: []string{"/no/such/file.md"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.doJSON(t, http.MethodPost, "/api/batches/任意ID/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
