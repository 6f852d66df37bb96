package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ASCII-S/Memoride-Prototype/api"
	"github.com/ASCII-S/Memoride-Prototype/api/handler"
	"github.com/ASCII-S/Memoride-Prototype/api/middleware"
	appconfig "github.com/ASCII-S/Memoride-Prototype/config"
	"github.com/ASCII-S/Memoride-Prototype/internal/backend"
	"github.com/ASCII-S/Memoride-Prototype/internal/cache"
	"github.com/ASCII-S/Memoride-Prototype/internal/database"
	"github.com/ASCII-S/Memoride-Prototype/internal/repository"
	"github.com/ASCII-S/Memoride-Prototype/internal/services"
	"github.com/ASCII-S/Memoride-Prototype/pkg/storage"
	"github.com/ASCII-S/Memoride-Prototype/pkg/taskqueue"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to config file")
		mode       = flag.String("mode", "release", "Run mode (debug/release)")
	)
	flag.Parse()

	// .env文件用于存放API密钥等不进配置文件的项
	_ = godotenv.Load()

	cfg, err := appconfig.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	gin.SetMode(*mode)

	middleware.ConfigureLogger(middleware.LogConfig{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	logger := middleware.GetLogger()
	logger.Info("Starting Memoride server...")

	// 初始化数据库
	if err := database.Setup(&database.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.DSN,
	}, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Warnf("Failed to close database: %v", err)
		}
	}()

	// 创建模型后端客户端
	client, err := backend.NewClient(backend.Config{
		Source:       backend.SourceKind(cfg.Backend.Source),
		Model:        cfg.Backend.Model,
		LocalURL:     cfg.Backend.LocalURL,
		RemoteURL:    cfg.Backend.RemoteURL,
		APIKey:       cfg.Backend.APIKey,
		PresetModels: cfg.Backend.PresetModels,
		Timeout:      cfg.Backend.Timeout,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize model backend: %v", err)
	}

	// 创建模型列表缓存
	var modelLists *cache.ModelListCache
	if cfg.Cache.Enable {
		store, err := cache.NewCache(cache.Config{
			Type:          cfg.Cache.Type,
			RedisAddr:     cfg.Cache.Address,
			RedisPassword: cfg.Cache.Password,
			RedisDB:       cfg.Cache.DB,
			DefaultTTL:    time.Duration(cfg.Cache.TTL) * time.Second,
		})
		if err != nil {
			logger.Fatalf("Failed to initialize cache: %v", err)
		}
		modelLists = cache.NewModelListCache(store, time.Duration(cfg.Cache.TTL)*time.Second)
	}

	// 创建产出归档
	archive, err := setupArchive(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize archive: %v", err)
	}

	// 创建提示词库
	library, err := services.NewPromptLibrary(cfg.Prompts.Dir)
	if err != nil {
		logger.Fatalf("Failed to initialize prompt library: %v", err)
	}

	// 初始化任务队列（如果启用）
	var queue taskqueue.Queue
	if cfg.Queue.Enable {
		queue, err = taskqueue.NewRedisQueue(&taskqueue.Config{
			RedisAddr:     cfg.Queue.RedisAddr,
			RedisPassword: cfg.Queue.RedisPassword,
			RedisDB:       cfg.Queue.RedisDB,
			Concurrency:   cfg.Queue.Concurrency,
			RetryLimit:    cfg.Queue.RetryLimit,
		})
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		logger.Info("Task queue initialized")
	}

	// 初始化业务服务
	db := database.MustDB()
	chatService := services.NewChatService(client, repository.NewChatRepositoryWithDB(db),
		cfg.Backend.Model, services.WithChatLogger(logger))
	modelService := services.NewModelService(client, modelLists, logger)

	batchOptions := []services.BatchOption{
		services.WithExtractRetries(cfg.Pipeline.MaxRetries, cfg.Pipeline.RetryDelay),
		services.WithBatchLogger(logger),
	}
	if queue != nil {
		batchOptions = append(batchOptions, services.WithBatchQueue(queue))
	}
	batchService := services.NewBatchService(client, repository.NewBatchRepositoryWithDB(db),
		archive, cfg.Backend.Model, cfg.Pipeline.OutputDir, batchOptions...)

	// 启用队列时在本进程内跑一个工作者
	var worker *taskqueue.Worker
	if queue != nil {
		worker = taskqueue.NewWorker(&taskqueue.Config{
			RedisAddr:     cfg.Queue.RedisAddr,
			RedisPassword: cfg.Queue.RedisPassword,
			RedisDB:       cfg.Queue.RedisDB,
			Concurrency:   cfg.Queue.Concurrency,
			RetryLimit:    cfg.Queue.RetryLimit,
		}, queue, logger)
		worker.RegisterHandler(taskqueue.TaskCardGeneration, batchService.HandleCardGeneration)
		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		defer worker.Stop()
		logger.Info("Card generation worker started")
	}

	// 初始化API处理器并设置路由
	chatHandler := handler.NewChatHandler(chatService)
	modelHandler := handler.NewModelHandler(modelService, client.Name())
	promptHandler := handler.NewPromptHandler(library)
	batchHandler := handler.NewBatchHandler(batchService, library)

	router := api.SetupRouter(chatHandler, modelHandler, promptHandler, batchHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // 流式回复和批处理查询可能长时间保持连接
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号后优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupArchive 按配置创建产出归档
func setupArchive(cfg *appconfig.Config) (storage.Archive, error) {
	switch cfg.Storage.Type {
	case "minio":
		return storage.NewMinioArchive(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		})
	default:
		return storage.NewLocalArchive(storage.LocalConfig{Path: cfg.Storage.Path})
	}
}
