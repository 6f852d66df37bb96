package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ASCII-S/Memoride-Prototype/api/middleware"
	"github.com/ASCII-S/Memoride-Prototype/api/model"
	"github.com/ASCII-S/Memoride-Prototype/internal/services"
)

// PromptHandler 处理系统提示词库相关的API请求
type PromptHandler struct {
	library *services.PromptLibrary // 提示词库
	logger  *logrus.Logger          // 日志记录器
}

// NewPromptHandler 创建新的提示词处理器
func NewPromptHandler(library *services.PromptLibrary) *PromptHandler {
	return &PromptHandler{
		library: library,
		logger:  middleware.GetLogger(),
	}
}

// ListPrompts 列出提示词库中的提示词名
// GET /api/prompts
func (h *PromptHandler) ListPrompts(c *gin.Context) {
	prompts, err := h.library.List()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list prompts")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取提示词列表失败",
		))
		return
	}

	names := make([]string, 0, len(prompts))
	for _, prompt := range prompts {
		names = append(names, prompt.Name)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.PromptListResponse{
		Prompts: names,
	}))
}

// GetPrompt 读取一个提示词的内容
// GET /api/prompts/:name
func (h *PromptHandler) GetPrompt(c *gin.Context) {
	var req model.PromptGetRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的提示词名",
		))
		return
	}

	content, err := h.library.Get(req.Name)
	if err != nil {
		c.JSON(http.StatusNotFound, model.NewErrorResponse(
			http.StatusNotFound,
			"提示词不存在",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.PromptResponse{
		Name:    req.Name,
		Content: content,
	}))
}

// SavePrompt 写入或覆盖一个提示词
// POST /api/prompts
func (h *PromptHandler) SavePrompt(c *gin.Context) {
	var req model.PromptSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	if err := h.library.Save(req.Name, req.Content); err != nil {
		h.logger.WithError(err).WithField("name", req.Name).Error("Failed to save prompt")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"保存提示词失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.PromptResponse{
		Name:    req.Name,
		Content: req.Content,
	}))
}
