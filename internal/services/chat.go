package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ASCII-S/Memoride-Prototype/internal/backend"
	"github.com/ASCII-S/Memoride-Prototype/internal/models"
	"github.com/ASCII-S/Memoride-Prototype/internal/repository"
)

// ChatService 多轮对话服务
// 会话和消息落库，每次请求把历史拼进消息列表
type ChatService struct {
	client       backend.Client
	repo         repository.ChatRepository
	defaultModel string
	historyLimit int
	logger       *logrus.Logger
}

// ChatOption 对话服务配置选项
type ChatOption func(*ChatService)

// WithHistoryLimit 设置带入上下文的历史消息条数上限
func WithHistoryLimit(n int) ChatOption {
	return func(s *ChatService) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithChatLogger 设置日志记录器
func WithChatLogger(logger *logrus.Logger) ChatOption {
	return func(s *ChatService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewChatService 创建对话服务
func NewChatService(client backend.Client, repo repository.ChatRepository, defaultModel string, opts ...ChatOption) *ChatService {
	s := &ChatService{
		client:       client,
		repo:         repo,
		defaultModel: defaultModel,
		historyLimit: 20,
		logger:       logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession 创建新会话
func (s *ChatService) CreateSession(ctx context.Context, title, model, systemPrompt string) (*models.ChatSession, error) {
	if model == "" {
		model = s.defaultModel
	}
	session := &models.ChatSession{
		Title:        title,
		Model:        model,
		SystemPrompt: systemPrompt,
	}
	if err := s.repo.WithContext(ctx).CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %v", err)
	}
	return session, nil
}

// GetSession 获取会话
func (s *ChatService) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	return s.repo.WithContext(ctx).GetSession(id)
}

// ListSessions 列出会话
func (s *ChatService) ListSessions(ctx context.Context, offset, limit int) ([]*models.ChatSession, int64, error) {
	return s.repo.WithContext(ctx).ListSessions(offset, limit)
}

// DeleteSession 删除会话
func (s *ChatService) DeleteSession(ctx context.Context, id string) error {
	return s.repo.WithContext(ctx).DeleteSession(id)
}

// History 获取会话的消息记录
func (s *ChatService) History(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	return s.repo.WithContext(ctx).GetMessages(sessionID, 0)
}

// Chat 在会话中发送一条消息并等待完整回复
func (s *ChatService) Chat(ctx context.Context, sessionID, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("message content cannot be empty")
	}

	session, messages, err := s.prepare(ctx, sessionID, content)
	if err != nil {
		return "", err
	}

	result, err := s.client.GenerateCompletion(ctx, &backend.CompletionRequest{
		Model:    session.Model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if result.Warning != "" {
		s.logger.Warn(result.Warning)
	}

	answer := result.Response
	if err := s.persistTurn(ctx, sessionID, content, answer); err != nil {
		return "", err
	}
	return answer, nil
}

// ChatStream 在会话中发送一条消息并流式返回回复
// 回复在流结束后整体落库
func (s *ChatService) ChatStream(ctx context.Context, sessionID, content string) (<-chan backend.StreamEvent, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("message content cannot be empty")
	}

	session, messages, err := s.prepare(ctx, sessionID, content)
	if err != nil {
		return nil, err
	}

	upstream, err := s.client.GenerateStream(ctx, &backend.CompletionRequest{
		Model:    session.Model,
		Messages: messages,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan backend.StreamEvent)
	go func() {
		defer close(out)

		var answer strings.Builder
		for event := range upstream {
			if event.Err == "" {
				answer.WriteString(event.Response)
			}
			out <- event
		}

		if answer.Len() > 0 {
			if err := s.persistTurn(context.Background(), sessionID, content, answer.String()); err != nil {
				s.logger.WithField("error", err.Error()).Warn("无法保存对话记录")
			}
		}
	}()
	return out, nil
}

// Completion 无会话的单次补全
func (s *ChatService) Completion(ctx context.Context, model, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}
	if model == "" {
		model = s.defaultModel
	}

	result, err := s.client.GenerateCompletion(ctx, &backend.CompletionRequest{
		Model:  model,
		Prompt: prompt,
	})
	if err != nil {
		return "", err
	}
	if result.Warning != "" {
		s.logger.Warn(result.Warning)
	}
	return result.Response, nil
}

// prepare 加载会话并构造带历史的消息列表
func (s *ChatService) prepare(ctx context.Context, sessionID, content string) (*models.ChatSession, []backend.Message, error) {
	repo := s.repo.WithContext(ctx)
	session, err := repo.GetSession(sessionID)
	if err != nil {
		return nil, nil, err
	}

	history, err := repo.GetMessages(sessionID, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load history: %v", err)
	}
	if len(history) > s.historyLimit {
		history = history[len(history)-s.historyLimit:]
	}

	var messages []backend.Message
	if session.SystemPrompt != "" {
		messages = append(messages, backend.Message{Role: "system", Content: session.SystemPrompt})
	}
	for _, msg := range history {
		messages = append(messages, backend.Message{Role: string(msg.Role), Content: msg.Content})
	}
	messages = append(messages, backend.Message{Role: "user", Content: content})

	return session, messages, nil
}

// persistTurn 保存一轮问答
func (s *ChatService) persistTurn(ctx context.Context, sessionID, question, answer string) error {
	repo := s.repo.WithContext(ctx)
	if err := repo.CreateMessage(&models.ChatMessage{
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   question,
	}); err != nil {
		return fmt.Errorf("failed to save user message: %v", err)
	}
	if err := repo.CreateMessage(&models.ChatMessage{
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   answer,
	}); err != nil {
		return fmt.Errorf("failed to save assistant message: %v", err)
	}
	return nil
}
