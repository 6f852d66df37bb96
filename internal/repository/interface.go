package repository

import (
	"context"

	"github.com/ASCII-S/Memoride-Prototype/internal/models"
)

// BatchRepository 批处理运行记录仓储接口
type BatchRepository interface {
	// CreateRun 创建运行记录
	CreateRun(run *models.BatchRun) error

	// GetRun 根据ID获取运行记录
	GetRun(id string) (*models.BatchRun, error)

	// ListRuns 按创建时间倒序列出运行记录
	ListRuns(offset, limit int) ([]*models.BatchRun, int64, error)

	// UpdateRun 更新运行记录
	UpdateRun(run *models.BatchRun) error

	// FinishRun 结算运行状态和计数
	FinishRun(id string, status models.RunStatus, succeeded, failed int, errMsg string) error

	// CreateFileJob 创建文件处理记录
	CreateFileJob(job *models.FileJob) error

	// UpdateFileJob 更新文件处理记录
	UpdateFileJob(job *models.FileJob) error

	// GetFileJobs 获取运行下的所有文件记录
	GetFileJobs(runID string) ([]*models.FileJob, error)

	// WithContext 创建带有上下文的仓储
	WithContext(ctx context.Context) BatchRepository
}

// ChatRepository 聊天会话和消息仓储接口
type ChatRepository interface {
	// CreateSession 创建聊天会话
	CreateSession(session *models.ChatSession) error

	// GetSession 获取聊天会话
	GetSession(id string) (*models.ChatSession, error)

	// ListSessions 按更新时间倒序列出会话
	ListSessions(offset, limit int) ([]*models.ChatSession, int64, error)

	// DeleteSession 删除会话及其消息
	DeleteSession(id string) error

	// CreateMessage 追加一条消息
	CreateMessage(message *models.ChatMessage) error

	// GetMessages 按时间顺序获取会话消息
	GetMessages(sessionID string, limit int) ([]*models.ChatMessage, error)

	// CountMessages 统计会话消息数量
	CountMessages(sessionID string) (int64, error)

	// WithContext 创建带有上下文的仓储
	WithContext(ctx context.Context) ChatRepository
}
