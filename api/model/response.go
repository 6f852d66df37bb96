package model

import (
	"time"

	"github.com/ASCII-S/Memoride-Prototype/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// ModelListResponse 模型列表响应
type ModelListResponse struct {
	Backend string   `json:"backend"` // 当前后端名称
	Models  []string `json:"models"`  // 可用模型名列表
}

// CompletionResponse 单次补全响应
type CompletionResponse struct {
	Model    string `json:"model"`    // 实际使用的模型
	Response string `json:"response"` // 生成的文本
}

// PromptListResponse 提示词列表响应
type PromptListResponse struct {
	Prompts []string `json:"prompts"` // 提示词名列表
}

// PromptResponse 单个提示词响应
type PromptResponse struct {
	Name    string `json:"name"`    // 提示词名
	Content string `json:"content"` // 提示词内容
}

// BatchRunInfo 批处理运行信息
type BatchRunInfo struct {
	ID         string     `json:"id"`                    // 运行ID
	Status     string     `json:"status"`                // 运行状态
	Model      string     `json:"model"`                 // 使用的模型
	Backend    string     `json:"backend"`               // 使用的后端
	TotalFiles int        `json:"total_files"`           // 文件总数
	Succeeded  int        `json:"succeeded"`             // 成功文件数
	Failed     int        `json:"failed"`                // 失败文件数
	Error      string     `json:"error,omitempty"`       // 错误信息（如果有）
	CreatedAt  time.Time  `json:"created_at"`            // 创建时间
	FinishedAt *time.Time `json:"finished_at,omitempty"` // 结束时间
}

// FileJobInfo 单个文件任务信息
type FileJobInfo struct {
	SourcePath string `json:"source_path"`           // 输入文件路径
	OutputPath string `json:"output_path,omitempty"` // 产出CSV路径
	Status     string `json:"status"`                // 任务状态
	CardCount  int    `json:"card_count"`            // 提取的卡片数
	Error      string `json:"error,omitempty"`       // 错误信息（如果有）
}

// BatchStatusResponse 批处理状态查询响应
type BatchStatusResponse struct {
	Run     BatchRunInfo  `json:"run"`            // 运行记录
	Jobs    []FileJobInfo `json:"jobs"`           // 文件任务列表
	Live    interface{}   `json:"live,omitempty"` // 进行中运行的实时进度
	Outputs []string      `json:"outputs"`        // 已归档的产出文件键
}

// BatchListResponse 批处理运行列表响应
type BatchListResponse struct {
	Total    int64          `json:"total"`     // 总记录数
	Page     int            `json:"page"`      // 当前页码
	PageSize int            `json:"page_size"` // 每页大小
	Runs     []BatchRunInfo `json:"runs"`      // 运行列表
}

// ConvertRunInfo 将运行记录转换为响应格式
func ConvertRunInfo(run *models.BatchRun) BatchRunInfo {
	return BatchRunInfo{
		ID:         run.ID,
		Status:     string(run.Status),
		Model:      run.Model,
		Backend:    run.Backend,
		TotalFiles: run.TotalFiles,
		Succeeded:  run.Succeeded,
		Failed:     run.Failed,
		Error:      run.Error,
		CreatedAt:  run.CreatedAt,
		FinishedAt: run.FinishedAt,
	}
}

// ConvertFileJobs 将文件任务记录转换为响应格式
func ConvertFileJobs(jobs []*models.FileJob) []FileJobInfo {
	infos := make([]FileJobInfo, 0, len(jobs))
	for _, job := range jobs {
		infos = append(infos, FileJobInfo{
			SourcePath: job.SourcePath,
			OutputPath: job.OutputPath,
			Status:     string(job.Status),
			CardCount:  job.CardCount,
			Error:      job.Error,
		})
	}
	return infos
}
