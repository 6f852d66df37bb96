package backend

import (
	"context"
	"encoding/json"
	"time"
)

// SourceKind 模型来源类型
type SourceKind string

const (
	// SourceLocal 本地Ollama模型服务
	SourceLocal SourceKind = "local"
	// SourceRemote 远程HTTP API服务
	SourceRemote SourceKind = "remote"
)

// Message 对话消息
type Message struct {
	Role    string `json:"role"`    // 角色: system, user, assistant
	Content string `json:"content"` // 消息内容
}

// CompletionRequest 文本生成请求
// Prompt和Messages二选一：Messages优先，用于携带系统提示词的两轮消息
type CompletionRequest struct {
	Model    string         // 模型名称
	Prompt   string         // 扁平提示词
	Messages []Message      // 消息列表形式的提示词
	Format   string         // 输出格式要求（如"json"，可选）
	Options  map[string]any // 额外的请求参数，不覆盖已有键
}

// CompletionResult 文本生成结果
type CompletionResult struct {
	Response  string          // 生成的文本内容
	Model     string          // 实际使用的模型
	CreatedAt string          // 生成时间
	Done      bool            // 是否完成
	Warning   string          // 非致命警告（如模型名被替换）
	Raw       json.RawMessage // 原始响应负载，供调用方按形状提取内容
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name string `json:"name"` // 模型名称
}

// Client 模型后端客户端接口
// 本地和远程后端共享同一组操作
type Client interface {
	// GenerateCompletion 生成文本补全
	GenerateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)

	// GenerateStream 流式生成，返回规范化后的事件序列
	GenerateStream(ctx context.Context, req *CompletionRequest) (<-chan StreamEvent, error)

	// ListModels 列出可用模型
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Name 返回后端名称
	Name() string
}

// Config 后端配置快照
// 任务启动时读取一次，运行期间不再感知配置变更
type Config struct {
	Source       SourceKind    // 模型来源
	Model        string        // 选中的模型名称
	LocalURL     string        // 本地服务地址，空则使用OLLAMA_HOST环境变量
	RemoteURL    string        // 远程API基础URL
	APIKey       string        // 远程API密钥
	PresetModels []string      // 远程API预设模型列表
	Timeout      time.Duration // 列表类请求超时，生成类请求为其2倍
}

// DefaultConfig 返回默认后端配置
func DefaultConfig() Config {
	return Config{
		Source:  SourceLocal,
		Model:   "llama3",
		Timeout: 30 * time.Second,
	}
}

// NewClient 根据配置创建对应的后端客户端
func NewClient(cfg Config) (Client, error) {
	switch cfg.Source {
	case SourceRemote:
		return NewRemoteClient(cfg)
	case SourceLocal:
		return NewOllamaClient(cfg)
	default:
		return nil, NewBackendError(ErrCodeInvalidRequest, "unknown backend source: "+string(cfg.Source))
	}
}
