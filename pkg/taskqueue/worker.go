package taskqueue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Worker 消费队列任务的工作者
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	queue    Queue
	logger   *logrus.Logger
	handlers map[TaskType]Handler
}

// NewWorker 创建工作者
func NewWorker(cfg *Config, queue Queue, logger *logrus.Logger) *Worker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.Concurrency,
		},
	)

	return &Worker{
		server:   server,
		mux:      asynq.NewServeMux(),
		queue:    queue,
		logger:   logger,
		handlers: make(map[TaskType]Handler),
	}
}

// RegisterHandler 注册任务处理函数
// 处理前后自动维护任务元数据的状态流转
func (w *Worker) RegisterHandler(taskType TaskType, handler Handler) {
	w.handlers[taskType] = handler
	w.mux.HandleFunc(string(taskType), func(ctx context.Context, t *asynq.Task) error {
		taskID := string(t.Payload())

		task, err := w.queue.GetTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("failed to load task %s: %w", taskID, err)
		}

		if err := w.queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, ""); err != nil {
			w.logger.WithField("task_id", taskID).Warn("无法更新任务状态")
		}

		if err := handler(ctx, task); err != nil {
			_ = w.queue.UpdateTaskStatus(ctx, taskID, StatusFailed, nil, err.Error())
			w.logger.WithFields(logrus.Fields{
				"task_id": taskID,
				"error":   err.Error(),
			}).Error("任务处理失败")
			return err
		}

		w.logger.WithField("task_id", taskID).Info("任务处理完成")
		return nil
	})
}

// Start 启动工作者，非阻塞
func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

// Stop 停止工作者，等待在途任务结束
func (w *Worker) Stop() {
	w.server.Shutdown()
}
