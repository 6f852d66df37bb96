package handler

import (
	"fmt"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ASCII-S/Memoride-Prototype/api/middleware"
	"github.com/ASCII-S/Memoride-Prototype/api/model"
	"github.com/ASCII-S/Memoride-Prototype/internal/services"
)

// BatchHandler 处理批量卡片生成相关的API请求
type BatchHandler struct {
	batchService *services.BatchService  // 批处理服务
	library      *services.PromptLibrary // 提示词库，用于按名解析系统提示词
	logger       *logrus.Logger          // 日志记录器
}

// NewBatchHandler 创建新的批处理处理器
func NewBatchHandler(batchService *services.BatchService, library *services.PromptLibrary) *BatchHandler {
	return &BatchHandler{
		batchService: batchService,
		library:      library,
		logger:       middleware.GetLogger(),
	}
}

// StartBatch 发起一次批量卡片生成
// POST /api/batches
func (h *BatchHandler) StartBatch(c *gin.Context) {
	var req model.StartBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid start batch request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" && req.PromptName != "" {
		content, err := h.library.Get(req.PromptName)
		if err != nil {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse(
				http.StatusBadRequest,
				fmt.Sprintf("提示词不存在: %s", req.PromptName),
			))
			return
		}
		systemPrompt = content
	}

	run, err := h.batchService.StartRun(c.Request.Context(), services.StartRunRequest{
		Files:        req.Files,
		Model:        req.Model,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to start batch run")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			err.Error(),
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ConvertRunInfo(run)))
}

// GetBatch 查询一次批处理运行的状态
// GET /api/batches/:id
func (h *BatchHandler) GetBatch(c *gin.Context) {
	var req model.BatchIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的运行ID",
		))
		return
	}

	status, err := h.batchService.GetRun(c.Request.Context(), req.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, model.NewErrorResponse(
			http.StatusNotFound,
			"批处理运行不存在",
		))
		return
	}

	resp := model.BatchStatusResponse{
		Run:     model.ConvertRunInfo(status.Run),
		Jobs:    model.ConvertFileJobs(status.Jobs),
		Outputs: status.Outputs,
	}
	if status.Live != nil {
		resp.Live = status.Live
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ListBatches 列出历史批处理运行
// GET /api/batches
func (h *BatchHandler) ListBatches(c *gin.Context) {
	var req model.BatchListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的分页参数",
		))
		return
	}

	offset := (req.GetPage() - 1) * req.GetPageSize()
	runs, total, err := h.batchService.ListRuns(c.Request.Context(), offset, req.GetPageSize())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list batch runs")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取运行列表失败",
		))
		return
	}

	infos := make([]model.BatchRunInfo, 0, len(runs))
	for _, run := range runs {
		infos = append(infos, model.ConvertRunInfo(run))
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.BatchListResponse{
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
		Runs:     infos,
	}))
}

// CancelBatch 请求取消一次进行中的运行
// POST /api/batches/:id/cancel
func (h *BatchHandler) CancelBatch(c *gin.Context) {
	var req model.BatchIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的运行ID",
		))
		return
	}

	if err := h.batchService.CancelRun(req.ID); err != nil {
		c.JSON(http.StatusNotFound, model.NewErrorResponse(
			http.StatusNotFound,
			"运行不在进行中",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{"id": req.ID, "cancelling": true}))
}

// DownloadOutput 下载一次运行的产出CSV
// GET /api/batches/:id/outputs/:key
func (h *BatchHandler) DownloadOutput(c *gin.Context) {
	var req model.OutputDownloadRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的下载参数",
		))
		return
	}

	key := path.Join(req.ID, req.Key)
	reader, err := h.batchService.OpenOutput(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, model.NewErrorResponse(
			http.StatusNotFound,
			"产出文件不存在",
		))
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", req.Key))
	c.DataFromReader(http.StatusOK, -1, "text/csv; charset=utf-8", reader, nil)
}
