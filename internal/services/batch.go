package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/ASCII-S/Memoride-Prototype/internal/backend"
	"github.com/ASCII-S/Memoride-Prototype/internal/extractor"
	"github.com/ASCII-S/Memoride-Prototype/internal/models"
	"github.com/ASCII-S/Memoride-Prototype/internal/pipeline"
	"github.com/ASCII-S/Memoride-Prototype/internal/repository"
	"github.com/ASCII-S/Memoride-Prototype/pkg/storage"
	"github.com/ASCII-S/Memoride-Prototype/pkg/taskqueue"
)

// StartRunRequest 发起一次批处理的参数
type StartRunRequest struct {
	Files        []string // 待处理文件路径
	Model        string   // 模型名，为空时使用默认模型
	SystemPrompt string   // 系统提示词，可为空
}

// RunStatus 运行状态视图，聚合数据库记录和内存中的实时进度
type RunStatus struct {
	Run     *models.BatchRun   `json:"run"`
	Jobs    []*models.FileJob  `json:"jobs"`
	Live    *pipeline.Snapshot `json:"live,omitempty"`
	Outputs []string           `json:"outputs"`
}

// BatchService 批处理运行管理服务
type BatchService struct {
	client       backend.Client
	repo         repository.BatchRepository
	archive      storage.Archive
	queue        taskqueue.Queue // 可选，配置后运行通过队列派发
	defaultModel string
	outputDir    string
	maxRetries   int
	retryDelay   time.Duration
	logger       *logrus.Logger

	mu     sync.Mutex
	active map[string]*pipeline.Controller
}

// BatchOption 批处理服务配置选项
type BatchOption func(*BatchService)

// WithBatchQueue 启用队列派发
func WithBatchQueue(queue taskqueue.Queue) BatchOption {
	return func(s *BatchService) {
		s.queue = queue
	}
}

// WithExtractRetries 设置提取超时重试参数
func WithExtractRetries(maxRetries int, delay time.Duration) BatchOption {
	return func(s *BatchService) {
		if maxRetries > 0 {
			s.maxRetries = maxRetries
		}
		if delay > 0 {
			s.retryDelay = delay
		}
	}
}

// WithBatchLogger 设置日志记录器
func WithBatchLogger(logger *logrus.Logger) BatchOption {
	return func(s *BatchService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewBatchService 创建批处理服务
func NewBatchService(
	client backend.Client,
	repo repository.BatchRepository,
	archive storage.Archive,
	defaultModel string,
	outputDir string,
	opts ...BatchOption,
) *BatchService {
	s := &BatchService{
		client:       client,
		repo:         repo,
		archive:      archive,
		defaultModel: defaultModel,
		outputDir:    outputDir,
		maxRetries:   30,
		retryDelay:   time.Second,
		logger:       logrus.New(),
		active:       make(map[string]*pipeline.Controller),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRun 创建并启动一次批处理
// 配置了队列时任务入队由工作者执行，否则在本进程后台执行
func (s *BatchService) StartRun(ctx context.Context, req StartRunRequest) (*models.BatchRun, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("no input files")
	}
	for _, path := range req.Files {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("input file not accessible: %s", path)
		}
	}
	if req.Model == "" {
		req.Model = s.defaultModel
	}

	run := &models.BatchRun{
		Model:      req.Model,
		Backend:    s.client.Name(),
		TotalFiles: len(req.Files),
		Status:     models.RunStatusPending,
		Metadata:   datatypes.JSON(fmt.Sprintf(`{"output_dir":%q}`, s.outputDir)),
	}
	if err := s.repo.WithContext(ctx).CreateRun(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %v", err)
	}
	for _, path := range req.Files {
		job := &models.FileJob{RunID: run.ID, SourcePath: path, Status: models.RunStatusPending}
		if err := s.repo.WithContext(ctx).CreateFileJob(job); err != nil {
			return nil, fmt.Errorf("failed to create file job: %v", err)
		}
	}

	if s.queue != nil {
		payload := &taskqueue.CardGenerationPayload{
			RunID:        run.ID,
			Files:        req.Files,
			Model:        req.Model,
			Backend:      s.client.Name(),
			OutputDir:    s.outputDir,
			SystemPrompt: req.SystemPrompt,
		}
		if _, err := s.queue.Enqueue(ctx, taskqueue.TaskCardGeneration, run.ID, payload); err != nil {
			return nil, fmt.Errorf("failed to enqueue run: %v", err)
		}
		return run, nil
	}

	ctrl := s.newController(run.ID, req)
	go s.execute(run, req, ctrl)
	return run, nil
}

// CancelRun 请求取消一次运行
func (s *BatchService) CancelRun(id string) error {
	s.mu.Lock()
	ctrl, ok := s.active[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("run not active: %s", id)
	}
	ctrl.Cancel()
	return nil
}

// GetRun 查询一次运行的状态
func (s *BatchService) GetRun(ctx context.Context, id string) (*RunStatus, error) {
	run, err := s.repo.WithContext(ctx).GetRun(id)
	if err != nil {
		return nil, err
	}
	jobs, err := s.repo.WithContext(ctx).GetFileJobs(id)
	if err != nil {
		return nil, err
	}

	status := &RunStatus{Run: run, Jobs: jobs}

	s.mu.Lock()
	if ctrl, ok := s.active[id]; ok {
		snap := ctrl.Status()
		status.Live = &snap
	}
	s.mu.Unlock()

	if s.archive != nil {
		objects, err := s.archive.List(ctx, id)
		if err == nil {
			for _, obj := range objects {
				status.Outputs = append(status.Outputs, obj.Key)
			}
		}
	}
	return status, nil
}

// ListRuns 列出历史运行
func (s *BatchService) ListRuns(ctx context.Context, offset, limit int) ([]*models.BatchRun, int64, error) {
	return s.repo.WithContext(ctx).ListRuns(offset, limit)
}

// OpenOutput 读取一个归档的产出文件
func (s *BatchService) OpenOutput(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("archive not configured")
	}
	return s.archive.Open(ctx, key)
}

// HandleCardGeneration 队列工作者的任务处理入口
func (s *BatchService) HandleCardGeneration(ctx context.Context, task *taskqueue.Task) error {
	var payload taskqueue.CardGenerationPayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return err
	}

	run, err := s.repo.WithContext(ctx).GetRun(payload.RunID)
	if err != nil {
		return err
	}

	req := StartRunRequest{Files: payload.Files, Model: payload.Model, SystemPrompt: payload.SystemPrompt}
	ctrl := s.newController(run.ID, req)
	s.execute(run, req, ctrl)

	result := &taskqueue.CardGenerationResult{RunID: run.ID}
	snap := ctrl.Status()
	result.Succeeded = snap.Succeeded
	result.Failed = snap.Failed
	result.Outputs = snap.Outputs
	if s.queue != nil {
		_ = s.queue.UpdateTaskStatus(ctx, task.ID, taskqueue.StatusCompleted, result, "")
	}
	if snap.State == pipeline.StateFailed {
		return fmt.Errorf("all files failed for run %s", run.ID)
	}
	return nil
}

// newController 为一次运行构造流水线控制器
func (s *BatchService) newController(runID string, req StartRunRequest) *pipeline.Controller {
	opts := []extractor.Option{
		extractor.WithMaxRetries(s.maxRetries),
		extractor.WithRetryDelay(s.retryDelay),
		extractor.WithLogger(s.logger),
	}
	if req.SystemPrompt != "" {
		opts = append(opts, extractor.WithSystemPrompt(req.SystemPrompt))
	}
	extr := extractor.New(s.client, req.Model, opts...)

	ctrl := pipeline.NewController(extr, req.Model, s.outputDir,
		pipeline.WithControllerLogger(s.logger))

	s.mu.Lock()
	s.active[runID] = ctrl
	s.mu.Unlock()
	return ctrl
}

// execute 运行流水线并把事件同步到数据库和归档
// 阻塞直到运行结束，调用方决定是否放入goroutine
func (s *BatchService) execute(run *models.BatchRun, req StartRunRequest, ctrl *pipeline.Controller) {
	defer func() {
		s.mu.Lock()
		delete(s.active, run.ID)
		s.mu.Unlock()
	}()

	ctx := context.Background()
	repo := s.repo.WithContext(ctx)

	run.Status = models.RunStatusRunning
	if err := repo.UpdateRun(run); err != nil {
		s.logger.WithField("error", err.Error()).Warn("无法更新运行状态")
	}

	jobs, err := repo.GetFileJobs(run.ID)
	if err != nil {
		s.logger.WithField("error", err.Error()).Warn("无法加载文件任务")
	}
	jobBySource := make(map[string]*models.FileJob, len(jobs))
	for _, job := range jobs {
		jobBySource[job.SourcePath] = job
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range ctrl.Events() {
			switch ev := event.(type) {
			case pipeline.FileDone:
				if job, ok := jobBySource[ev.SourcePath]; ok {
					job.Status = models.RunStatusCompleted
					job.OutputPath = ev.OutputPath
					job.CardCount = ev.CardCount
					if err := repo.UpdateFileJob(job); err != nil {
						s.logger.WithField("error", err.Error()).Warn("无法更新文件任务")
					}
				}
				s.archiveOutput(ctx, run.ID, ev.OutputPath)
			case pipeline.LogLine:
				s.logger.WithField("run", run.ID).Info(ev.Text)
			}
		}
	}()

	runErr := ctrl.Run(ctx, req.Files)
	wg.Wait()

	snap := ctrl.Status()
	finalStatus := runStatusFromState(snap.State)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if err := repo.FinishRun(run.ID, finalStatus, snap.Succeeded, snap.Failed, errMsg); err != nil {
		s.logger.WithField("error", err.Error()).Warn("无法结算运行记录")
	}

	// 未完成的文件任务按运行结果收尾
	pendingStatus := models.RunStatusFailed
	if finalStatus == models.RunStatusCancelled {
		pendingStatus = models.RunStatusCancelled
	}
	for _, job := range jobBySource {
		if job.Status == models.RunStatusPending {
			job.Status = pendingStatus
			if err := repo.UpdateFileJob(job); err != nil {
				s.logger.WithField("error", err.Error()).Warn("无法更新文件任务")
			}
		}
	}
}

// archiveOutput 把产出CSV写入归档
func (s *BatchService) archiveOutput(ctx context.Context, runID, outputPath string) {
	if s.archive == nil {
		return
	}
	file, err := os.Open(outputPath)
	if err != nil {
		s.logger.WithField("error", err.Error()).Warn("无法读取产出文件")
		return
	}
	defer file.Close()
	if _, err := s.archive.Save(ctx, runID, file, filepath.Base(outputPath)); err != nil {
		s.logger.WithField("error", err.Error()).Warn("无法归档产出文件")
	}
}

// runStatusFromState 把流水线状态映射为运行记录状态
func runStatusFromState(state pipeline.State) models.RunStatus {
	switch state {
	case pipeline.StateCompleted:
		return models.RunStatusCompleted
	case pipeline.StateCancelled:
		return models.RunStatusCancelled
	case pipeline.StateFailed:
		return models.RunStatusFailed
	case pipeline.StateRunning:
		return models.RunStatusRunning
	default:
		return models.RunStatusPending
	}
}
