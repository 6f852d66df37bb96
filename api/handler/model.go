package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ASCII-S/Memoride-Prototype/api/middleware"
	"github.com/ASCII-S/Memoride-Prototype/api/model"
	"github.com/ASCII-S/Memoride-Prototype/internal/services"
)

// ModelHandler 处理模型列表相关的API请求
type ModelHandler struct {
	modelService *services.ModelService // 模型列表服务
	backendName  string                 // 当前后端名称
	logger       *logrus.Logger         // 日志记录器
}

// NewModelHandler 创建新的模型处理器
func NewModelHandler(modelService *services.ModelService, backendName string) *ModelHandler {
	return &ModelHandler{
		modelService: modelService,
		backendName:  backendName,
		logger:       middleware.GetLogger(),
	}
}

// ListModels 获取可用模型列表
// GET /api/models
func (h *ModelHandler) ListModels(c *gin.Context) {
	var req model.ModelListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	var (
		names []string
		err   error
	)
	if req.Refresh {
		names, err = h.modelService.Refresh(c.Request.Context())
	} else {
		names, err = h.modelService.ListModels(c.Request.Context())
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to list models")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取模型列表失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ModelListResponse{
		Backend: h.backendName,
		Models:  names,
	}))
}
