package model

import (
	"time"

	"github.com/ASCII-S/Memoride-Prototype/internal/models"
)

// CreateChatRequest 创建聊天会话请求
type CreateChatRequest struct {
	Title        string `json:"title,omitempty"`         // 会话标题，可选
	Model        string `json:"model,omitempty"`         // 模型名，为空时使用默认模型
	SystemPrompt string `json:"system_prompt,omitempty"` // 系统提示词，可选
}

// ChatMessageRequest 在会话中发送消息的请求
type ChatMessageRequest struct {
	SessionID string `uri:"session_id" binding:"required"` // 会话ID
	Content   string `json:"content" binding:"required"`   // 消息内容
}

// GetChatHistoryRequest 获取聊天历史请求
type GetChatHistoryRequest struct {
	SessionID string `uri:"session_id" binding:"required"` // 会话ID
}

// ChatListRequest 聊天会话列表请求
type ChatListRequest struct {
	PaginationRequest
}

// DeleteChatRequest 删除聊天会话请求
type DeleteChatRequest struct {
	SessionID string `uri:"session_id" binding:"required"` // 会话ID
}

// ChatSessionInfo 聊天会话信息
type ChatSessionInfo struct {
	SessionID    string    `json:"session_id"`              // 会话ID
	Title        string    `json:"title"`                   // 会话标题
	Model        string    `json:"model"`                   // 使用的模型
	SystemPrompt string    `json:"system_prompt,omitempty"` // 系统提示词
	CreatedAt    time.Time `json:"created_at"`              // 创建时间
	UpdatedAt    time.Time `json:"updated_at"`              // 最近活动时间
}

// MessageInfo 聊天消息信息
type MessageInfo struct {
	ID        uint      `json:"id"`         // 消息ID
	Role      string    `json:"role"`       // 消息角色
	Content   string    `json:"content"`    // 消息内容
	CreatedAt time.Time `json:"created_at"` // 创建时间
}

// ChatHistoryResponse 聊天历史响应
type ChatHistoryResponse struct {
	SessionID string        `json:"session_id"` // 会话ID
	Title     string        `json:"title"`      // 会话标题
	Messages  []MessageInfo `json:"messages"`   // 消息列表
}

// ChatListResponse 聊天会话列表响应
type ChatListResponse struct {
	Total    int64             `json:"total"`     // 总记录数
	Page     int               `json:"page"`      // 当前页码
	PageSize int               `json:"page_size"` // 每页大小
	Sessions []ChatSessionInfo `json:"sessions"`  // 会话列表
}

// ChatAnswerResponse 一轮对话的回复
type ChatAnswerResponse struct {
	SessionID string `json:"session_id"` // 会话ID
	Answer    string `json:"answer"`     // 模型回复
}

// DeleteChatResponse 删除会话响应
type DeleteChatResponse struct {
	Success   bool   `json:"success"`    // 是否成功
	SessionID string `json:"session_id"` // 会话ID
}

// StreamChunk 流式回复中的一个片段
type StreamChunk struct {
	Response string `json:"response"`        // 内容增量
	Done     bool   `json:"done"`            // 流结束标记
	Error    string `json:"error,omitempty"` // 行级错误信息
}

// ConvertSessionInfo 将会话记录转换为响应格式
func ConvertSessionInfo(session *models.ChatSession) ChatSessionInfo {
	return ChatSessionInfo{
		SessionID:    session.ID,
		Title:        session.Title,
		Model:        session.Model,
		SystemPrompt: session.SystemPrompt,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
	}
}

// ConvertMessageInfos 将消息记录转换为响应格式
func ConvertMessageInfos(messages []*models.ChatMessage) []MessageInfo {
	infos := make([]MessageInfo, 0, len(messages))
	for _, msg := range messages {
		infos = append(infos, MessageInfo{
			ID:        msg.ID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	return infos
}
