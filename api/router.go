package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ASCII-S/Memoride-Prototype/api/handler"
	"github.com/ASCII-S/Memoride-Prototype/api/middleware"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	chatHandler *handler.ChatHandler,
	modelHandler *handler.ModelHandler,
	promptHandler *handler.PromptHandler,
	batchHandler *handler.BatchHandler,
) *gin.Engine {
	router := gin.New()

	// 应用全局中间件
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(middleware.SetTraceID())

	// 在调试模式下记录请求体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	api := router.Group("/api")
	{
		// 聊天会话API
		chatGroup := api.Group("/chats")
		{
			// 创建会话 - POST /api/chats
			chatGroup.POST("", chatHandler.CreateChat)

			// 会话列表 - GET /api/chats
			chatGroup.GET("", chatHandler.ListChats)

			// 聊天历史 - GET /api/chats/:session_id
			chatGroup.GET("/:session_id", chatHandler.GetChatHistory)

			// 删除会话 - DELETE /api/chats/:session_id
			chatGroup.DELETE("/:session_id", chatHandler.DeleteChat)

			// 发送消息 - POST /api/chats/:session_id/messages
			chatGroup.POST("/:session_id/messages", chatHandler.PostMessage)

			// 流式发送消息 - POST /api/chats/:session_id/stream
			chatGroup.POST("/:session_id/stream", chatHandler.StreamMessage)
		}

		// 单次补全 - POST /api/completion
		api.POST("/completion", chatHandler.Completion)

		// 模型列表 - GET /api/models
		api.GET("/models", modelHandler.ListModels)

		// 提示词库API
		promptGroup := api.Group("/prompts")
		{
			// 提示词列表 - GET /api/prompts
			promptGroup.GET("", promptHandler.ListPrompts)

			// 读取提示词 - GET /api/prompts/:name
			promptGroup.GET("/:name", promptHandler.GetPrompt)

			// 保存提示词 - POST /api/prompts
			promptGroup.POST("", promptHandler.SavePrompt)
		}

		// 批量卡片生成API
		batchGroup := api.Group("/batches")
		{
			// 发起批处理 - POST /api/batches
			batchGroup.POST("", batchHandler.StartBatch)

			// 运行列表 - GET /api/batches
			batchGroup.GET("", batchHandler.ListBatches)

			// 运行状态 - GET /api/batches/:id
			batchGroup.GET("/:id", batchHandler.GetBatch)

			// 取消运行 - POST /api/batches/:id/cancel
			batchGroup.POST("/:id/cancel", batchHandler.CancelBatch)

			// 下载产出 - GET /api/batches/:id/outputs/:key
			batchGroup.GET("/:id/outputs/:key", batchHandler.DownloadOutput)
		}

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
// 如果需要支持跨域请求，可以启用此中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
