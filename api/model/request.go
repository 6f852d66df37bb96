package model

// 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// CompletionRequest 单次补全请求
type CompletionRequest struct {
	Model  string `json:"model" binding:"omitempty"`  // 模型名，为空时使用默认模型
	Prompt string `json:"prompt" binding:"required"`  // 提示词内容
}

// ModelListRequest 模型列表请求
type ModelListRequest struct {
	Refresh bool `form:"refresh" binding:"omitempty"` // 是否绕过缓存强制刷新
}

// PromptGetRequest 提示词读取请求
type PromptGetRequest struct {
	Name string `uri:"name" binding:"required"` // 提示词名
}

// PromptSaveRequest 提示词保存请求
type PromptSaveRequest struct {
	Name    string `json:"name" binding:"required,promptname"` // 提示词名
	Content string `json:"content" binding:"required"`         // 提示词内容
}

// StartBatchRequest 发起批处理请求
type StartBatchRequest struct {
	Files        []string `json:"files" binding:"required,min=1,dive,required"` // 待处理文件路径列表
	Model        string   `json:"model" binding:"omitempty"`                    // 模型名，为空时使用默认模型
	SystemPrompt string   `json:"system_prompt" binding:"omitempty"`            // 系统提示词
	PromptName   string   `json:"prompt_name" binding:"omitempty"`              // 提示词库中的提示词名，与system_prompt二选一
}

// BatchIDRequest 按ID操作批处理的请求
type BatchIDRequest struct {
	ID string `uri:"id" binding:"required"` // 运行ID
}

// BatchListRequest 批处理运行列表请求
type BatchListRequest struct {
	PaginationRequest
}

// OutputDownloadRequest 产出文件下载请求
type OutputDownloadRequest struct {
	ID  string `uri:"id" binding:"required"`  // 运行ID
	Key string `uri:"key" binding:"required"` // 归档文件键中的文件名部分
}
