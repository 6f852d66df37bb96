package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ASCII-S/Memoride-Prototype/internal/backend"
	"github.com/ASCII-S/Memoride-Prototype/internal/segmenter"
)

// promptTemplate 卡片生成提示词模板
// 要求模型严格输出JSON，实际响应仍可能混入注释或代码块，由恢复逻辑兜底
const promptTemplate = `请将以下内容转换为学习卡片(问答对)格式。请严格按照JSON输出格式:
{
"cards": [
    {
    "q": "问题1",
    "a": "答案1"
    },
    {
    "q": "问题2",
    "a": "答案2"
    }
]
}

原始内容:
%s`

// Card 一张学习卡片
// 问题和答案均非空，换行已折叠为空格
type Card struct {
	Question string `json:"q"` // 问题
	Answer   string `json:"a"` // 答案
}

// Extractor 卡片提取器
// 负责构造提示词、调用后端并容错解析模型输出
type Extractor struct {
	client       backend.Client // 模型后端客户端
	model        string         // 模型名称
	systemPrompt string         // 系统提示词，可为空
	maxRetries   int            // 超时重试次数上限
	retryDelay   time.Duration  // 重试间隔
	logger       *logrus.Logger // 日志记录器
}

// Option 提取器配置选项
type Option func(*Extractor)

// WithSystemPrompt 设置系统提示词
func WithSystemPrompt(prompt string) Option {
	return func(e *Extractor) {
		e.systemPrompt = prompt
	}
}

// WithMaxRetries 设置超时重试次数上限
func WithMaxRetries(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithRetryDelay 设置重试间隔
func WithRetryDelay(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.retryDelay = d
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New 创建卡片提取器
func New(client backend.Client, model string, opts ...Option) *Extractor {
	e := &Extractor{
		client:     client,
		model:      model,
		maxRetries: 30,
		retryDelay: time.Second,
		logger:     logrus.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuildPrompt 构造片段的卡片生成提示词
func BuildPrompt(content string) string {
	return fmt.Sprintf(promptTemplate, content)
}

// Extract 对单个片段执行卡片提取
// 片段级失败在此吸收：解析失败、非超时错误都记录日志并返回空结果。
// cancelled在每次网络调用前后被检查，取消后不会再发起新的请求。
func (e *Extractor) Extract(ctx context.Context, section segmenter.Section, cancelled func() bool) []Card {
	if cancelled() {
		return nil
	}

	prompt := BuildPrompt(section.Content)
	req := e.buildRequest(prompt)

	result, ok := e.callWithRetry(ctx, req, cancelled)
	if !ok {
		return nil
	}

	// 持久化前再次确认未被取消，避免取消后仍写入数据
	if cancelled() {
		return nil
	}

	content := e.unwrapContent(result)
	cards, err := ParseCards(content)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"section": section.Index,
			"error":   err.Error(),
		}).Warn("无法从响应中提取有效JSON")
		return nil
	}
	if len(cards) == 0 {
		e.logger.WithField("section", section.Index).Info("该片段未生成卡片")
	}
	return cards
}

// buildRequest 根据是否配置系统提示词选择请求形态
// 两种后端都接受两种形态，与后端类型无关
func (e *Extractor) buildRequest(prompt string) *backend.CompletionRequest {
	req := &backend.CompletionRequest{Model: e.model}
	if e.systemPrompt != "" {
		req.Messages = []backend.Message{
			{Role: "system", Content: e.systemPrompt},
			{Role: "user", Content: prompt},
		}
	} else {
		req.Prompt = prompt
	}
	return req
}

// callWithRetry 调用后端，超时错误按固定间隔有限重试
func (e *Extractor) callWithRetry(ctx context.Context, req *backend.CompletionRequest, cancelled func() bool) (*backend.CompletionResult, bool) {
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if cancelled() {
			return nil, false
		}

		result, err := e.client.GenerateCompletion(ctx, req)
		if err == nil {
			if result.Warning != "" {
				e.logger.Warn(result.Warning)
			}
			return result, true
		}

		if !backend.IsTimeout(err) {
			e.logger.WithField("error", err.Error()).Warn("API调用失败")
			return nil, false
		}

		e.logger.WithField("attempt", attempt+1).Info("请求超时，等待重试")
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(e.retryDelay):
		}
	}

	e.logger.WithField("retries", e.maxRetries).Warn("重试次数耗尽")
	return nil, false
}

// unwrapContent 从结果中取出文本内容
// 远程后端携带原始负载时按响应形状分类提取
func (e *Extractor) unwrapContent(result *backend.CompletionResult) string {
	if len(result.Raw) > 0 {
		shape, content := backend.ClassifyResponse(result.Raw)
		e.logger.WithField("shape", shape.String()).Debug("已识别响应形状")
		return content
	}
	return result.Response
}
