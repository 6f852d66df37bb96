package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ASCII-S/Memoride-Prototype/api/middleware"
	"github.com/ASCII-S/Memoride-Prototype/api/model"
	"github.com/ASCII-S/Memoride-Prototype/internal/services"
)

// ChatHandler 处理聊天相关的API请求
type ChatHandler struct {
	chatService *services.ChatService // 聊天服务
	logger      *logrus.Logger        // 日志记录器
}

// NewChatHandler 创建新的聊天处理器
func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      middleware.GetLogger(),
	}
}

// CreateChat 创建新的聊天会话
// POST /api/chats
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req model.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid create chat request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	session, err := h.chatService.CreateSession(c.Request.Context(), req.Title, req.Model, req.SystemPrompt)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create chat session")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"创建聊天会话失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ConvertSessionInfo(session)))
}

// ListChats 获取聊天会话列表
// GET /api/chats
func (h *ChatHandler) ListChats(c *gin.Context) {
	var req model.ChatListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的分页参数",
		))
		return
	}

	offset := (req.GetPage() - 1) * req.GetPageSize()
	sessions, total, err := h.chatService.ListSessions(c.Request.Context(), offset, req.GetPageSize())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list chat sessions")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取会话列表失败",
		))
		return
	}

	infos := make([]model.ChatSessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, model.ConvertSessionInfo(session))
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ChatListResponse{
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
		Sessions: infos,
	}))
}

// GetChatHistory 获取聊天历史记录
// GET /api/chats/:session_id
func (h *ChatHandler) GetChatHistory(c *gin.Context) {
	var req model.GetChatHistoryRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的会话ID",
		))
		return
	}

	session, err := h.chatService.GetSession(c.Request.Context(), req.SessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, model.NewErrorResponse(
			http.StatusNotFound,
			"聊天会话不存在",
		))
		return
	}

	messages, err := h.chatService.History(c.Request.Context(), req.SessionID)
	if err != nil {
		h.logger.WithError(err).WithField("session_id", req.SessionID).Error("Failed to get chat messages")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取聊天消息失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ChatHistoryResponse{
		SessionID: session.ID,
		Title:     session.Title,
		Messages:  model.ConvertMessageInfos(messages),
	}))
}

// DeleteChat 删除聊天会话
// DELETE /api/chats/:session_id
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	var req model.DeleteChatRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的会话ID",
		))
		return
	}

	if err := h.chatService.DeleteSession(c.Request.Context(), req.SessionID); err != nil {
		h.logger.WithError(err).WithField("session_id", req.SessionID).Error("Failed to delete chat session")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"删除聊天会话失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DeleteChatResponse{
		Success:   true,
		SessionID: req.SessionID,
	}))
}

// PostMessage 在会话中发送消息并等待完整回复
// POST /api/chats/:session_id/messages
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req model.ChatMessageRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的会话ID",
		))
		return
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的消息内容",
		))
		return
	}

	answer, err := h.chatService.Chat(c.Request.Context(), req.SessionID, req.Content)
	if err != nil {
		h.logger.WithError(err).WithField("session_id", req.SessionID).Error("Chat request failed")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"对话请求失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ChatAnswerResponse{
		SessionID: req.SessionID,
		Answer:    answer,
	}))
}

// StreamMessage 在会话中发送消息并以SSE流式返回回复
// POST /api/chats/:session_id/stream
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	var req model.ChatMessageRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的会话ID",
		))
		return
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的消息内容",
		))
		return
	}

	stream, err := h.chatService.ChatStream(c.Request.Context(), req.SessionID, req.Content)
	if err != nil {
		h.logger.WithError(err).WithField("session_id", req.SessionID).Error("Chat stream request failed")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"对话请求失败",
		))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		event, ok := <-stream
		if !ok {
			return false
		}
		chunk := model.StreamChunk{
			Response: event.Response,
			Done:     event.Done,
			Error:    event.Err,
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return false
		}
		c.SSEvent("message", string(data))
		return true
	})
}

// Completion 无会话的单次补全
// POST /api/completion
func (h *ChatHandler) Completion(c *gin.Context) {
	var req model.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	answer, err := h.chatService.Completion(c.Request.Context(), req.Model, req.Prompt)
	if err != nil {
		h.logger.WithError(err).Error("Completion request failed")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"补全请求失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.CompletionResponse{
		Model:    req.Model,
		Response: answer,
	}))
}
