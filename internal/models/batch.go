package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RunStatus 批处理运行状态
type RunStatus string

const (
	// RunStatusPending 已创建，等待执行
	RunStatusPending RunStatus = "pending"
	// RunStatusRunning 执行中
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted 正常完成
	RunStatusCompleted RunStatus = "completed"
	// RunStatusCancelled 被取消
	RunStatusCancelled RunStatus = "cancelled"
	// RunStatusFailed 整体失败
	RunStatusFailed RunStatus = "failed"
)

// BatchRun 一次卡片生成批次的记录
type BatchRun struct {
	ID         string         `gorm:"primaryKey"`         // 运行ID，主键
	Status     RunStatus      `gorm:"not null;index"`     // 运行状态
	Model      string         `gorm:"not null"`           // 使用的模型名
	Backend    string         `gorm:"size:20"`            // 后端来源：local或remote
	TotalFiles int            `gorm:"not null;default:0"` // 文件总数
	Succeeded  int            `gorm:"not null;default:0"` // 成功文件数
	Failed     int            `gorm:"not null;default:0"` // 失败文件数
	Error      string         `gorm:"type:text"`          // 整体失败时的错误信息
	Metadata   datatypes.JSON `gorm:"type:json"`          // 元数据，例如输出目录和系统提示词名
	CreatedAt  time.Time      `gorm:"not null;index"`     // 创建时间
	UpdatedAt  time.Time      `gorm:"not null"`           // 更新时间
	FinishedAt *time.Time     `gorm:"index"`              // 结束时间
}

// BeforeCreate GORM钩子，创建前补齐时间
func (r *BatchRun) BeforeCreate(tx *gorm.DB) (err error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate GORM钩子，更新前刷新更新时间
func (r *BatchRun) BeforeUpdate(tx *gorm.DB) (err error) {
	r.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (BatchRun) TableName() string {
	return "batch_runs"
}

// FileJob 批次中单个文件的处理结果
type FileJob struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"` // 主键ID
	RunID      string    `gorm:"not null;index"`           // 所属运行ID
	SourcePath string    `gorm:"not null"`                 // 源文件路径
	OutputPath string    `gorm:"type:text"`                // 输出CSV路径
	Status     RunStatus `gorm:"not null;index"`           // 文件处理状态
	CardCount  int       `gorm:"not null;default:0"`       // 写入的卡片数
	Error      string    `gorm:"type:text"`                // 失败原因
	CreatedAt  time.Time `gorm:"not null"`                 // 创建时间
	UpdatedAt  time.Time `gorm:"not null"`                 // 更新时间
}

// BeforeCreate GORM钩子，创建前补齐时间
func (j *FileJob) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM钩子，更新前刷新更新时间
func (j *FileJob) BeforeUpdate(tx *gorm.DB) (err error) {
	j.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (FileJob) TableName() string {
	return "file_jobs"
}
