package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ASCII-S/Memoride-Prototype/internal/database"
	"github.com/ASCII-S/Memoride-Prototype/internal/models"
)

// chatRepo 聊天仓储实现
type chatRepo struct {
	db *gorm.DB
}

// NewChatRepository 使用全局数据库连接创建聊天仓储
func NewChatRepository() ChatRepository {
	return &chatRepo{db: database.MustDB()}
}

// NewChatRepositoryWithDB 使用指定数据库连接创建聊天仓储
func NewChatRepositoryWithDB(db *gorm.DB) ChatRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &chatRepo{db: db}
}

// WithContext 创建带有上下文的仓储
func (r *chatRepo) WithContext(ctx context.Context) ChatRepository {
	return &chatRepo{db: r.db.WithContext(ctx)}
}

// CreateSession 创建聊天会话，未指定ID时生成UUID
func (r *chatRepo) CreateSession(session *models.ChatSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.Title == "" {
		session.Title = "新会话"
	}
	return r.db.Create(session).Error
}

// GetSession 获取聊天会话
func (r *chatRepo) GetSession(id string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("chat session not found: %s", id)
		}
		return nil, err
	}
	return &session, nil
}

// ListSessions 按更新时间倒序列出会话
func (r *chatRepo) ListSessions(offset, limit int) ([]*models.ChatSession, int64, error) {
	var sessions []*models.ChatSession
	var total int64

	query := r.db.Model(&models.ChatSession{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// DeleteSession 删除会话及其消息
func (r *chatRepo) DeleteSession(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.ChatSession{}).Error
	})
}

// CreateMessage 追加一条消息并刷新会话更新时间
func (r *chatRepo) CreateMessage(message *models.ChatMessage) error {
	if message.SessionID == "" {
		return fmt.Errorf("message requires a session id")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatSession{}).
			Where("id = ?", message.SessionID).
			Update("updated_at", message.CreatedAt).Error
	})
}

// GetMessages 按时间顺序获取会话消息
// limit小于等于0时返回全部
func (r *chatRepo) GetMessages(sessionID string, limit int) ([]*models.ChatMessage, error) {
	var messages []*models.ChatMessage

	query := r.db.Where("session_id = ?", sessionID).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// CountMessages 统计会话消息数量
func (r *chatRepo) CountMessages(sessionID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}
