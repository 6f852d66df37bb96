package taskqueue

import (
	"context"
	"time"
)

// Queue 任务队列接口
// 负责卡片生成任务的入队和状态跟踪
type Queue interface {
	// Enqueue 将任务加入队列，返回任务ID
	Enqueue(ctx context.Context, taskType TaskType, runID string, payload interface{}) (string, error)

	// EnqueueIn 在指定延迟后将任务加入队列
	EnqueueIn(ctx context.Context, taskType TaskType, runID string, payload interface{}, delay time.Duration) (string, error)

	// GetTask 获取任务信息
	GetTask(ctx context.Context, taskID string) (*Task, error)

	// UpdateTaskStatus 更新任务状态和结果
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, result interface{}, errorMsg string) error

	// DeleteTask 删除任务
	DeleteTask(ctx context.Context, taskID string) error

	// Close 关闭队列连接
	Close() error
}

// Handler 任务处理函数
type Handler func(ctx context.Context, task *Task) error

// Config 队列配置
type Config struct {
	RedisAddr     string        // Redis地址
	RedisPassword string        // Redis密码
	RedisDB       int           // Redis数据库
	Concurrency   int           // 并发处理任务数
	RetryLimit    int           // 最大重试次数
	RetryDelay    time.Duration // 重试延迟
}

// DefaultConfig 返回默认配置
// 批处理本身是顺序的，默认单并发避免多个批次争抢同一个模型后端
func DefaultConfig() *Config {
	return &Config{
		RedisAddr:   "localhost:6379",
		RedisDB:     0,
		Concurrency: 1,
		RetryLimit:  2,
		RetryDelay:  time.Minute,
	}
}
