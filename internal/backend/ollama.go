package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/ollama/ollama/api"
)

// thinkPattern 思考过程标记，本地推理模型会在响应中携带
var thinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// OllamaClient 本地Ollama模型服务客户端
type OllamaClient struct {
	client *api.Client // 官方SDK客户端
}

// NewOllamaClient 创建本地后端客户端
// LocalURL为空时遵循OLLAMA_HOST环境变量
func NewOllamaClient(cfg Config) (Client, error) {
	var client *api.Client

	if cfg.LocalURL == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, NewBackendError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create ollama client: %v", err))
		}
		client = c
	} else {
		base, err := url.Parse(cfg.LocalURL)
		if err != nil {
			return nil, NewBackendError(ErrCodeInvalidRequest, fmt.Sprintf("invalid local backend url: %v", err))
		}
		httpClient := &http.Client{Timeout: cfg.Timeout * 2}
		client = api.NewClient(base, httpClient)
	}

	return &OllamaClient{client: client}, nil
}

// Name 返回后端名称
func (c *OllamaClient) Name() string {
	return "ollama"
}

// GenerateCompletion 生成文本补全
// 消息列表会被拍平为单个提示词，因为本地generate协议只接受扁平提示
func (c *OllamaClient) GenerateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	prompt := flattenPrompt(req)
	if prompt == "" {
		return nil, NewBackendError(ErrCodeEmptyPrompt, "prompt cannot be empty")
	}

	genReq := &api.GenerateRequest{
		Model:   req.Model,
		Prompt:  prompt,
		Stream:  new(bool), // 非流式
		Options: req.Options,
	}
	if req.Format != "" {
		genReq.Format = json.RawMessage(fmt.Sprintf("%q", req.Format))
	}

	var result *CompletionResult
	err := c.client.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
		result = &CompletionResult{
			Response:  strings.TrimSpace(thinkPattern.ReplaceAllString(resp.Response, "")),
			Model:     resp.Model,
			CreatedAt: resp.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			Done:      resp.Done,
		}
		return nil
	})
	if err != nil {
		if IsTimeout(err) {
			return nil, NewBackendError(ErrCodeTimeout, fmt.Sprintf("generate request timed out: %v", err))
		}
		return nil, NewBackendError(ErrCodeNetworkError, fmt.Sprintf("generate failed: %v", err))
	}
	if result == nil {
		return nil, NewBackendError(ErrCodeServerError, "empty response from local backend")
	}

	return result, nil
}

// GenerateStream 流式生成文本
func (c *OllamaClient) GenerateStream(ctx context.Context, req *CompletionRequest) (<-chan StreamEvent, error) {
	prompt := flattenPrompt(req)
	if prompt == "" {
		return nil, NewBackendError(ErrCodeEmptyPrompt, "prompt cannot be empty")
	}

	stream := true
	genReq := &api.GenerateRequest{
		Model:   req.Model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: req.Options,
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		err := c.client.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
			events <- StreamEvent{
				Response:  resp.Response,
				Model:     resp.Model,
				CreatedAt: resp.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
				Done:      resp.Done,
			}
			return nil
		})
		if err != nil {
			events <- StreamEvent{Err: fmt.Sprintf("stream failed: %v", err)}
		}
	}()

	return events, nil
}

// ListModels 列出本地已安装的模型
func (c *OllamaClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, NewBackendError(ErrCodeNetworkError, fmt.Sprintf("failed to list local models: %v", err))
	}

	models := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, ModelInfo{Name: m.Name})
	}
	return models, nil
}

// flattenPrompt 将请求的提示词归一为单个字符串
// 消息列表按"{role}: {content}\n"逐条拼接
func flattenPrompt(req *CompletionRequest) string {
	if len(req.Messages) == 0 {
		return strings.TrimSpace(req.Prompt)
	}

	var sb strings.Builder
	for _, msg := range req.Messages {
		if msg.Role == "" || msg.Content == "" {
			continue
		}
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}
