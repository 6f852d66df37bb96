package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ASCII-S/Memoride-Prototype/internal/extractor"
	"github.com/ASCII-S/Memoride-Prototype/internal/segmenter"
)

// fakeExtractor 记录收到的片段并返回固定卡片
type fakeExtractor struct {
	mu       sync.Mutex
	sections []segmenter.Section
	perCall  []extractor.Card
	onCall   func(callNo int)
}

func (f *fakeExtractor) Extract(ctx context.Context, section segmenter.Section, cancelled func() bool) []extractor.Card {
	f.mu.Lock()
	f.sections = append(f.sections, section)
	callNo := len(f.sections)
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(callNo)
	}
	if cancelled() {
		return nil
	}
	return f.perCall
}

func (f *fakeExtractor) calls() []segmenter.Section {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]segmenter.Section(nil), f.sections...)
}

// mdSection 生成一个标题加n行正文的Markdown片段
func mdSection(title string, n int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", title)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%s正文第%d行\n", title, i+1)
	}
	return sb.String()
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

// TestRunWritesCSVIncrementally 每个片段的卡片独立追加，行数为表头加卡片数
func TestRunWritesCSVIncrementally(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	doc := writeDoc(t, dir, "notes.md", mdSection("第一章", 25)+mdSection("第二章", 25)+mdSection("第三章", 25))

	fake := &fakeExtractor{perCall: []extractor.Card{
		{Question: "问1", Answer: "答1"},
		{Question: "问2", Answer: "答2"},
	}}
	c := NewController(fake, "llama3:8b", outDir)

	require.NoError(t, c.Run(context.Background(), []string{doc}))
	assert.Equal(t, StateCompleted, c.State())
	assert.Len(t, fake.calls(), 3)

	outPath := filepath.Join(outDir, "notes-llama3-8b-学习卡片.csv")
	rows := readCSV(t, outPath)
	require.Len(t, rows, 1+3*2, "表头加每段两张卡片")
	assert.Equal(t, []string{"问题", "答案"}, rows[0])
	assert.Equal(t, []string{"问1", "答1"}, rows[1])
}

// TestOutputFileName 输出名确定且模型名被清洗
func TestOutputFileName(t *testing.T) {
	assert.Equal(t, "notes-llama3-8b-学习卡片.csv", OutputFileName("/data/notes.md", "llama3:8b"))
	assert.Equal(t, "a-m--x--学习卡片.csv", OutputFileName("a.txt", `m/\x?`))
	assert.Equal(t, OutputFileName("a.md", "m"), OutputFileName("b/../a.md", "m"))
}

// TestRunMergesSmallSections 过短片段在提取前向后合并
func TestRunMergesSmallSections(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "short.md",
		mdSection("短一", 4)+mdSection("短二", 5)+mdSection("长章", 30))

	fake := &fakeExtractor{perCall: []extractor.Card{{Question: "q", Answer: "a"}}}
	c := NewController(fake, "m", filepath.Join(dir, "out"))
	require.NoError(t, c.Run(context.Background(), []string{doc}))

	calls := fake.calls()
	require.Len(t, calls, 1, "三个片段合并为一次提取")
	assert.GreaterOrEqual(t, calls[0].LineCount, segmenter.MinSectionLines)
	assert.Contains(t, calls[0].Content, "短一正文第1行")
	assert.Contains(t, calls[0].Content, "长章正文第30行")
}

// TestRunWholeFileFallback 分段为空时整个文件作为一个片段
func TestRunWholeFileFallback(t *testing.T) {
	dir := t.TempDir()
	// 5行纯文本不足最小窗口，常规分段结果为空
	doc := writeDoc(t, dir, "tiny.txt", "一\n二\n三\n四\n五")

	fake := &fakeExtractor{perCall: []extractor.Card{{Question: "q", Answer: "a"}}}
	c := NewController(fake, "m", filepath.Join(dir, "out"))
	require.NoError(t, c.Run(context.Background(), []string{doc}))

	calls := fake.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Content, "五")
}

// TestRunCancellation 取消后不再发起提取，也不再写入结果
func TestRunCancellation(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	doc := writeDoc(t, dir, "big.md",
		mdSection("一", 25)+mdSection("二", 25)+mdSection("三", 25))

	fake := &fakeExtractor{perCall: []extractor.Card{{Question: "q", Answer: "a"}}}
	c := NewController(fake, "m", outDir)
	fake.onCall = func(callNo int) {
		if callNo == 1 {
			c.Cancel()
		}
	}

	require.NoError(t, c.Run(context.Background(), []string{doc}))
	assert.Equal(t, StateCancelled, c.State())
	assert.Len(t, fake.calls(), 1, "取消后不应再处理后续片段")

	// 第一段的结果在取消后也不落盘
	rows := readCSV(t, filepath.Join(outDir, "big-m-学习卡片.csv"))
	assert.Len(t, rows, 1, "只有表头")
}

// TestRunAbsorbsFileFailures 单个文件失败不影响后续文件
func TestRunAbsorbsFileFailures(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	good := writeDoc(t, dir, "good.md", mdSection("章", 25))

	fake := &fakeExtractor{perCall: []extractor.Card{{Question: "q", Answer: "a"}}}
	c := NewController(fake, "m", outDir)

	err := c.Run(context.Background(), []string{filepath.Join(dir, "missing.md"), good})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, c.State())

	status := c.Status()
	assert.Equal(t, 1, status.Succeeded)
	assert.Equal(t, 1, status.Failed)
	require.Len(t, status.Outputs, 1)
	assert.FileExists(t, status.Outputs[0])
}

// TestRunAllFilesFailed 全部失败时整体状态为失败
func TestRunAllFilesFailed(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeExtractor{}
	c := NewController(fake, "m", filepath.Join(dir, "out"))

	err := c.Run(context.Background(), []string{filepath.Join(dir, "nope.md")})
	assert.Error(t, err)
	assert.Equal(t, StateFailed, c.State())
}

// TestRunOnlyOnce 控制器是一次性的
func TestRunOnlyOnce(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "a.md", mdSection("章", 25))

	fake := &fakeExtractor{}
	c := NewController(fake, "m", filepath.Join(dir, "out"))
	require.NoError(t, c.Run(context.Background(), []string{doc}))

	err := c.Run(context.Background(), []string{doc})
	assert.Error(t, err)
}

// TestRunEmitsEvents 事件流包含进度、完成和结束事件
func TestRunEmitsEvents(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "a.md", mdSection("章", 25))

	fake := &fakeExtractor{perCall: []extractor.Card{{Question: "q", Answer: "a"}}}
	c := NewController(fake, "m", filepath.Join(dir, "out"))

	done := make(chan struct{})
	var events []Event
	go func() {
		defer close(done)
		for ev := range c.Events() {
			events = append(events, ev)
		}
	}()

	require.NoError(t, c.Run(context.Background(), []string{doc}))
	<-done

	var sawProgress, sawFileDone bool
	var finished *Finished
	for _, ev := range events {
		switch v := ev.(type) {
		case Progress:
			sawProgress = true
		case FileDone:
			sawFileDone = true
			assert.Equal(t, 1, v.CardCount)
		case Finished:
			f := v
			finished = &f
		}
	}
	assert.True(t, sawProgress)
	assert.True(t, sawFileDone)
	require.NotNil(t, finished)
	assert.True(t, finished.Success)
	assert.Equal(t, 1, finished.Succeeded)
}

// TestSanitizeModelName 非法字符统一替换为连字符
func TestSanitizeModelName(t *testing.T) {
	assert.Equal(t, "llama3-8b", SanitizeModelName("llama3:8b"))
	assert.Equal(t, "a-b-c-d-e-f-g-h-i", SanitizeModelName(`a:b/c\d*e?f"g<h|i`))
	assert.Equal(t, "plain", SanitizeModelName("plain"))
}
