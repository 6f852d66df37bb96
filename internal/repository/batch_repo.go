package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ASCII-S/Memoride-Prototype/internal/database"
	"github.com/ASCII-S/Memoride-Prototype/internal/models"
)

// batchRepo 批处理仓储实现
type batchRepo struct {
	db *gorm.DB
}

// NewBatchRepository 使用全局数据库连接创建批处理仓储
func NewBatchRepository() BatchRepository {
	return &batchRepo{db: database.MustDB()}
}

// NewBatchRepositoryWithDB 使用指定数据库连接创建批处理仓储
func NewBatchRepositoryWithDB(db *gorm.DB) BatchRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &batchRepo{db: db}
}

// WithContext 创建带有上下文的仓储
func (r *batchRepo) WithContext(ctx context.Context) BatchRepository {
	return &batchRepo{db: r.db.WithContext(ctx)}
}

// CreateRun 创建运行记录，未指定ID时生成UUID
func (r *batchRepo) CreateRun(run *models.BatchRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = models.RunStatusPending
	}
	return r.db.Create(run).Error
}

// GetRun 根据ID获取运行记录
func (r *batchRepo) GetRun(id string) (*models.BatchRun, error) {
	var run models.BatchRun
	err := r.db.Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("batch run not found: %s", id)
		}
		return nil, err
	}
	return &run, nil
}

// ListRuns 按创建时间倒序列出运行记录
func (r *batchRepo) ListRuns(offset, limit int) ([]*models.BatchRun, int64, error) {
	var runs []*models.BatchRun
	var total int64

	query := r.db.Model(&models.BatchRun{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// UpdateRun 更新运行记录
func (r *batchRepo) UpdateRun(run *models.BatchRun) error {
	return r.db.Save(run).Error
}

// FinishRun 结算运行状态和计数
func (r *batchRepo) FinishRun(id string, status models.RunStatus, succeeded, failed int, errMsg string) error {
	now := time.Now()
	return r.db.Model(&models.BatchRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"succeeded":   succeeded,
			"failed":      failed,
			"error":       errMsg,
			"finished_at": &now,
			"updated_at":  now,
		}).Error
}

// CreateFileJob 创建文件处理记录
func (r *batchRepo) CreateFileJob(job *models.FileJob) error {
	if job.Status == "" {
		job.Status = models.RunStatusPending
	}
	return r.db.Create(job).Error
}

// UpdateFileJob 更新文件处理记录
func (r *batchRepo) UpdateFileJob(job *models.FileJob) error {
	return r.db.Save(job).Error
}

// GetFileJobs 获取运行下的所有文件记录
func (r *batchRepo) GetFileJobs(runID string) ([]*models.FileJob, error) {
	var jobs []*models.FileJob
	err := r.db.Where("run_id = ?", runID).
		Order("id ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
