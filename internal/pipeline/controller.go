package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/ASCII-S/Memoride-Prototype/internal/document"
	"github.com/ASCII-S/Memoride-Prototype/internal/extractor"
	"github.com/ASCII-S/Memoride-Prototype/internal/segmenter"
)

// State 批处理状态
type State int32

const (
	// StateIdle 尚未开始
	StateIdle State = iota
	// StateRunning 处理中
	StateRunning
	// StateCompleted 正常完成
	StateCompleted
	// StateCancelled 被取消
	StateCancelled
	// StateFailed 整体失败
	StateFailed
)

// String 返回状态名
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CardExtractor 片段级卡片提取依赖
type CardExtractor interface {
	Extract(ctx context.Context, section segmenter.Section, cancelled func() bool) []extractor.Card
}

// Snapshot 批处理的当前进度快照，供状态查询使用
type Snapshot struct {
	State       State    `json:"state"`
	CurrentFile int      `json:"current_file"`
	TotalFiles  int      `json:"total_files"`
	Succeeded   int      `json:"succeeded"`
	Failed      int      `json:"failed"`
	Outputs     []string `json:"outputs"`
}

// Controller 一次批处理运行的控制器
// 文件之间和片段之间都是顺序处理，控制器只能运行一次
type Controller struct {
	extractor CardExtractor
	model     string
	outputDir string
	logger    *logrus.Logger

	events    chan Event
	cancelled atomic.Bool
	state     atomic.Int32

	mu       sync.Mutex
	snapshot Snapshot
}

// ControllerOption 控制器配置选项
type ControllerOption func(*Controller)

// WithControllerLogger 设置日志记录器
func WithControllerLogger(logger *logrus.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEventBuffer 设置事件通道缓冲大小
func WithEventBuffer(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.events = make(chan Event, n)
		}
	}
}

// NewController 创建批处理控制器
func NewController(extr CardExtractor, model, outputDir string, opts ...ControllerOption) *Controller {
	c := &Controller{
		extractor: extr,
		model:     model,
		outputDir: outputDir,
		logger:    logrus.New(),
		events:    make(chan Event, 256),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events 事件通道，Run结束时关闭
// 消费不及时的事件会被丢弃，进度以Status为准
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State 当前状态
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Status 当前进度快照
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.snapshot
	snap.State = c.State()
	snap.Outputs = append([]string(nil), c.snapshot.Outputs...)
	return snap
}

// Cancel 请求取消
// 当前网络调用返回后生效，等待中的重试立即中断
func (c *Controller) Cancel() {
	c.cancelled.Store(true)
}

func (c *Controller) isCancelled() bool {
	return c.cancelled.Load()
}

// Run 顺序处理所有文件，阻塞直到批次结束
// 单个文件的失败被吸收并计数，只有控制器自身无法工作时返回错误
func (c *Controller) Run(ctx context.Context, files []string) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("controller already started (state=%s)", c.State())
	}
	defer close(c.events)

	if len(files) == 0 {
		c.state.Store(int32(StateFailed))
		c.emit(Finished{Success: false, Message: "没有待处理的文件"})
		return fmt.Errorf("no input files")
	}

	if err := os.MkdirAll(c.outputDir, 0755); err != nil {
		c.state.Store(int32(StateFailed))
		c.emit(Finished{Success: false, Message: "无法创建输出目录", Total: len(files)})
		return fmt.Errorf("failed to create output dir: %v", err)
	}

	c.mu.Lock()
	c.snapshot.TotalFiles = len(files)
	c.mu.Unlock()

	succeeded, failed := 0, 0
	for i, path := range files {
		if c.isCancelled() || ctx.Err() != nil {
			break
		}

		c.mu.Lock()
		c.snapshot.CurrentFile = i + 1
		c.mu.Unlock()

		c.emit(Progress{
			CurrentFile: i + 1,
			TotalFiles:  len(files),
			Message:     fmt.Sprintf("开始处理 %s", filepath.Base(path)),
		})

		outPath, count, err := c.processFile(ctx, i+1, len(files), path)
		if err != nil {
			failed++
			c.logger.WithFields(logrus.Fields{
				"file":  path,
				"error": err.Error(),
			}).Warn("文件处理失败")
			c.emit(LogLine{Text: fmt.Sprintf("处理失败: %s: %v", filepath.Base(path), err)})
			c.mu.Lock()
			c.snapshot.Failed = failed
			c.mu.Unlock()
			continue
		}

		succeeded++
		c.mu.Lock()
		c.snapshot.Succeeded = succeeded
		c.snapshot.Outputs = append(c.snapshot.Outputs, outPath)
		c.mu.Unlock()

		c.emit(FileDone{SourcePath: path, OutputPath: outPath, CardCount: count})
		c.logger.WithFields(logrus.Fields{
			"file":   path,
			"output": outPath,
			"cards":  count,
		}).Info("文件处理完成")
	}

	return c.finish(succeeded, failed, len(files))
}

// finish 结算批次状态并发布结束事件
func (c *Controller) finish(succeeded, failed, total int) error {
	switch {
	case c.isCancelled():
		c.state.Store(int32(StateCancelled))
		c.emit(Finished{
			Success: false, Message: "批处理已取消",
			Succeeded: succeeded, Failed: failed, Total: total,
		})
		c.logger.Info("批处理已取消")
		return nil
	case succeeded == 0:
		c.state.Store(int32(StateFailed))
		c.emit(Finished{
			Success: false, Message: "所有文件处理失败",
			Succeeded: succeeded, Failed: failed, Total: total,
		})
		return fmt.Errorf("all %d files failed", total)
	default:
		c.state.Store(int32(StateCompleted))
		c.emit(Finished{
			Success: true,
			Message: fmt.Sprintf("批处理完成: 成功%d个, 失败%d个", succeeded, failed),
			Succeeded: succeeded, Failed: failed, Total: total,
		})
		return nil
	}
}

// processFile 处理单个文件，返回输出路径和写入的卡片数
func (c *Controller) processFile(ctx context.Context, fileNo, totalFiles int, path string) (string, int, error) {
	doc, err := document.ParserFactory(path).Parse(path)
	if err != nil {
		return "", 0, err
	}

	sections := c.splitDocument(doc)
	if len(sections) == 0 {
		// 分段为空时把整个文件当作一个片段
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			return "", 0, fmt.Errorf("document is empty")
		}
		sections = []segmenter.Section{{
			Index:     1,
			Content:   content,
			LineCount: len(strings.Split(content, "\n")),
		}}
	}

	// 每个文件独享一个临时工作区，片段落盘便于排查，结束时清理
	workspace, err := os.MkdirTemp("", "memoride_sections_")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create section workspace: %v", err)
	}
	defer os.RemoveAll(workspace)

	for _, section := range sections {
		name := filepath.Join(workspace, fmt.Sprintf("section_%03d.txt", section.Index))
		if err := os.WriteFile(name, []byte(section.Content), 0644); err != nil {
			return "", 0, fmt.Errorf("failed to write section file: %v", err)
		}
	}

	outPath := filepath.Join(c.outputDir, OutputFileName(path, c.model))
	if err := createWithHeader(outPath); err != nil {
		return "", 0, err
	}

	total := 0
	processed := make(map[int]bool)
	for idx := range sections {
		if processed[idx] {
			continue
		}
		if c.isCancelled() || ctx.Err() != nil {
			break
		}

		merged, absorbed := segmenter.MergeForward(sections, idx)
		for _, a := range absorbed {
			processed[a] = true
		}
		if len(absorbed) > 0 {
			c.emit(LogLine{Text: fmt.Sprintf("片段%d过短，合并了后续%d个片段", merged.Index, len(absorbed))})
		}

		c.emit(Progress{
			CurrentFile:    fileNo,
			TotalFiles:     totalFiles,
			CurrentSection: idx + 1,
			TotalSections:  len(sections),
			Message:        fmt.Sprintf("正在提取第%d/%d段", idx+1, len(sections)),
		})

		cards := c.extractor.Extract(ctx, merged, c.isCancelled)
		if c.isCancelled() {
			break
		}
		if err := appendCards(outPath, cards); err != nil {
			return "", 0, err
		}
		total += len(cards)
	}

	return outPath, total, nil
}

// splitDocument 按内容类型选择分段方式
func (c *Controller) splitDocument(doc *document.Document) []segmenter.Section {
	if doc.Kind == document.Markdown {
		return segmenter.SplitMarkdown(doc.Content)
	}
	return segmenter.SplitPlainText(doc.Content)
}

// emit 非阻塞发布事件，消费不及时时丢弃
func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}
