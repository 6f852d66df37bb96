package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskCardGeneration 批量卡片生成任务
	TaskCardGeneration TaskType = "card_generation"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 队列中的任务
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	RunID       string          `json:"run_id"`       // 关联的批处理运行ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷
	Result      json.RawMessage `json:"result"`       // 任务结果
	Error       string          `json:"error"`        // 错误信息
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// CardGenerationPayload 卡片生成任务载荷
type CardGenerationPayload struct {
	RunID        string   `json:"run_id"`        // 批处理运行ID
	Files        []string `json:"files"`         // 待处理文件路径
	Model        string   `json:"model"`         // 模型名
	Backend      string   `json:"backend"`       // 后端来源
	OutputDir    string   `json:"output_dir"`    // 输出目录
	SystemPrompt string   `json:"system_prompt"` // 系统提示词，可为空
}

// CardGenerationResult 卡片生成任务结果
type CardGenerationResult struct {
	RunID     string   `json:"run_id"`    // 批处理运行ID
	Succeeded int      `json:"succeeded"` // 成功文件数
	Failed    int      `json:"failed"`    // 失败文件数
	Outputs   []string `json:"outputs"`   // 输出CSV路径
}

// TaskError 任务错误类型
type TaskError string

// Error 实现error接口
func (e TaskError) Error() string {
	return string(e)
}

// ErrTaskNotFound 任务未找到错误
var ErrTaskNotFound = TaskError("task not found")

// ErrInvalidPayload 无效的任务载荷错误
var ErrInvalidPayload = TaskError("invalid task payload")

// MarshalPayload 将任务载荷序列化为JSON
func MarshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(payload)
}

// UnmarshalPayload 将JSON反序列化为任务载荷
func UnmarshalPayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return ErrInvalidPayload
	}
	return json.Unmarshal(data, v)
}
