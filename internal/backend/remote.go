package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteClient 远程HTTP API客户端
// 根据URL识别API家族：OpenAI兼容家族走chat completions，其余走通用generate端点
type RemoteClient struct {
	baseURL      string        // API基础URL，无末尾斜杠
	apiKey       string        // API密钥
	presetModels []string      // 预设模型白名单
	listTimeout  time.Duration // 列表类请求超时
	httpClient   *http.Client  // 复用的HTTP客户端，按请求设置超时
}

// NewRemoteClient 创建远程后端客户端
func NewRemoteClient(cfg Config) (Client, error) {
	if cfg.RemoteURL == "" {
		return nil, NewBackendError(ErrCodeInvalidRequest, "remote API URL is empty")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &RemoteClient{
		baseURL:      strings.TrimRight(cfg.RemoteURL, "/"),
		apiKey:       cfg.APIKey,
		presetModels: cfg.PresetModels,
		listTimeout:  timeout,
		httpClient:   &http.Client{},
	}, nil
}

// Name 返回后端名称
func (c *RemoteClient) Name() string {
	return "remote"
}

// openaiCompatible 判断API是否属于OpenAI兼容家族
func (c *RemoteClient) openaiCompatible() bool {
	lower := strings.ToLower(c.baseURL)
	return strings.Contains(lower, "openai") || strings.Contains(lower, "deepseek.com")
}

// resolveModel 校验模型名是否在预设白名单内
// 不在白名单的模型名替换为第一个预设模型，并返回警告说明
func (c *RemoteClient) resolveModel(model string) (string, string) {
	if len(c.presetModels) == 0 {
		return model, ""
	}
	for _, preset := range c.presetModels {
		if preset == model {
			return model, ""
		}
	}
	actual := c.presetModels[0]
	warning := fmt.Sprintf("模型 %q 不在配置的模型列表中，已使用 %q 代替", model, actual)
	return actual, warning
}

// GenerateCompletion 生成文本补全
func (c *RemoteClient) GenerateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	endpoint, payload, warning, err := c.buildGenerateRequest(req, false)
	if err != nil {
		return nil, err
	}

	raw, err := c.postJSON(ctx, endpoint, payload, c.listTimeout*2)
	if err != nil {
		return nil, err
	}

	_, content := ClassifyResponse(raw)
	result := &CompletionResult{
		Response: content,
		Model:    req.Model,
		Done:     true,
		Warning:  warning,
		Raw:      raw,
	}
	return result, nil
}

// GenerateStream 流式生成文本
func (c *RemoteClient) GenerateStream(ctx context.Context, req *CompletionRequest) (<-chan StreamEvent, error) {
	endpoint, payload, _, err := c.buildGenerateRequest(req, true)
	if err != nil {
		return nil, err
	}

	body, err := c.postStream(ctx, endpoint, payload, c.listTimeout*2)
	if err != nil {
		return nil, err
	}

	inner := NormalizeStream(body, c.openaiCompatible())
	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer body.Close()
		for ev := range inner {
			events <- ev
		}
	}()
	return events, nil
}

// buildGenerateRequest 根据API家族构造生成请求
func (c *RemoteClient) buildGenerateRequest(req *CompletionRequest, stream bool) (endpoint string, payload map[string]any, warning string, err error) {
	if c.openaiCompatible() {
		// OpenAI兼容家族必须携带API密钥，缺失时不发起任何网络请求
		if c.apiKey == "" {
			return "", nil, "", NewBackendError(ErrCodeInvalidAPIKey,
				"API密钥为空，请在远程API配置中设置有效的API密钥")
		}

		messages := req.Messages
		if len(messages) == 0 {
			messages = []Message{{Role: "user", Content: req.Prompt}}
		}

		actualModel, warn := c.resolveModel(req.Model)
		payload = map[string]any{
			"model":    actualModel,
			"messages": messages,
			"stream":   stream,
		}
		mergeOptions(payload, req.Options)
		return "/v1/chat/completions", payload, warn, nil
	}

	prompt := req.Prompt
	if len(req.Messages) > 0 {
		prompt = flattenPrompt(req)
	}
	payload = map[string]any{
		"model":  req.Model,
		"prompt": prompt,
		"stream": stream,
	}
	if req.Format != "" {
		payload["format"] = req.Format
	}
	mergeOptions(payload, req.Options)
	return "/generate", payload, "", nil
}

// ListModels 列出远程API可用模型
// 配置了预设模型列表时直接返回，避免一次网络往返
func (c *RemoteClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if len(c.presetModels) > 0 {
		models := make([]ModelInfo, 0, len(c.presetModels))
		for _, name := range c.presetModels {
			models = append(models, ModelInfo{Name: name})
		}
		return models, nil
	}

	endpoint := "/models"
	if c.openaiCompatible() {
		endpoint = "/v1/models"
	}

	raw, err := c.getJSON(ctx, endpoint, c.listTimeout)
	if err != nil {
		return nil, err
	}

	// OpenAI格式: {"data":[{"id":...}]}；通用格式: {"models":[{"name":...}]}
	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, NewBackendError(ErrCodeBadPayload, fmt.Sprintf("failed to parse model list: %v", err))
	}

	var models []ModelInfo
	for _, m := range parsed.Data {
		if m.ID != "" {
			models = append(models, ModelInfo{Name: m.ID})
		}
	}
	for _, m := range parsed.Models {
		if m.Name != "" {
			models = append(models, ModelInfo{Name: m.Name})
		}
	}
	return models, nil
}

// mergeOptions 合并额外选项，不覆盖已有键
func mergeOptions(payload map[string]any, options map[string]any) {
	for key, value := range options {
		if key == "prompt" {
			continue
		}
		if _, exists := payload[key]; !exists {
			payload[key] = value
		}
	}
}

// postJSON 发送POST请求并返回JSON响应体
func (c *RemoteClient) postJSON(ctx context.Context, endpoint string, payload any, timeout time.Duration) (json.RawMessage, error) {
	body, err := c.doRequest(ctx, http.MethodPost, endpoint, payload, timeout)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, NewBackendError(ErrCodeNetworkError, fmt.Sprintf("failed to read response: %v", err))
	}

	if !json.Valid(data) {
		return nil, &BackendError{
			Code:    ErrCodeBadPayload,
			Message: "远程API返回了非JSON响应",
			Body:    redactSecret(string(data), c.apiKey),
		}
	}
	return data, nil
}

// postStream 发送POST请求并返回未读取的响应体，供流式消费
func (c *RemoteClient) postStream(ctx context.Context, endpoint string, payload any, timeout time.Duration) (io.ReadCloser, error) {
	return c.doRequest(ctx, http.MethodPost, endpoint, payload, timeout)
}

// getJSON 发送GET请求并返回JSON响应体
func (c *RemoteClient) getJSON(ctx context.Context, endpoint string, timeout time.Duration) (json.RawMessage, error) {
	body, err := c.doRequest(ctx, http.MethodGet, endpoint, nil, timeout)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, NewBackendError(ErrCodeNetworkError, fmt.Sprintf("failed to read response: %v", err))
	}
	if !json.Valid(data) {
		return nil, &BackendError{
			Code:    ErrCodeBadPayload,
			Message: "远程API返回了非JSON响应",
			Body:    redactSecret(string(data), c.apiKey),
		}
	}
	return data, nil
}

// doRequest 执行HTTP请求，处理超时与非2xx错误
func (c *RemoteClient) doRequest(ctx context.Context, method, endpoint string, payload any, timeout time.Duration) (io.ReadCloser, error) {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, NewBackendError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
		}
		reqBody = bytes.NewReader(data)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		cancel()
		return nil, NewBackendError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		if IsTimeout(err) || reqCtx.Err() == context.DeadlineExceeded {
			return nil, NewBackendError(ErrCodeTimeout, fmt.Sprintf("request timed out: %v", redactSecret(err.Error(), c.apiKey)))
		}
		return nil, NewBackendError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", redactSecret(err.Error(), c.apiKey)))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &BackendError{
			Code:       ErrCodeServerError,
			Message:    fmt.Sprintf("远程API HTTP错误 (status %d)", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Body:       redactSecret(string(data), c.apiKey),
		}
	}

	return &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}, nil
}

// cancelReadCloser 关闭响应体时同时释放请求上下文
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

// Close 关闭响应体并取消上下文
func (c *cancelReadCloser) Close() error {
	c.cancel()
	return c.ReadCloser.Close()
}
