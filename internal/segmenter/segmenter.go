package segmenter

import (
	"strings"
)

// 分段参数
const (
	// PlainTextWindowLines 纯文本模式每个窗口的行数
	PlainTextWindowLines = 50
	// PlainTextMinLines 纯文本窗口的最小行数，不足时并入前一个窗口
	PlainTextMinLines = 10
	// MinSectionLines 提取前片段的目标最小行数，不足时向后合并
	MinSectionLines = 20
)

// Section 文档中一个结构化片段
type Section struct {
	Index     int    // 序号，从1开始，决定处理顺序
	Content   string // 片段内容，已去除首尾空白
	LineCount int    // 内容行数
}

// newSection 构造片段并计算行数
func newSection(index int, lines []string) Section {
	content := strings.Join(lines, "\n")
	return Section{
		Index:     index,
		Content:   content,
		LineCount: len(lines),
	}
}

// SplitMarkdown 按标题切割Markdown文本
// 一到三级标题开启新片段；#include行和含链接的行被跳过；
// 只有标题没有正文的片段不会输出。输入相同则输出相同，任何内部异常返回空序列。
func SplitMarkdown(text string) (sections []Section) {
	defer func() {
		if r := recover(); r != nil {
			sections = nil
		}
	}()

	var current []string
	index := 1

	flush := func() {
		cleaned, hasBody := cleanLines(current)
		if hasBody && len(cleaned) > 0 {
			sections = append(sections, newSection(index, cleaned))
			index++
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#include") {
			continue
		}
		if strings.Contains(line, "https://") || strings.Contains(line, "http://") {
			continue
		}

		if isHeading(line) {
			flush()
			current = []string{line}
			continue
		}
		current = append(current, line)
	}
	flush()

	return sections
}

// SplitPlainText 按固定行数窗口切割纯文本
// 每50行一个窗口；不足10行的窗口并入前一个窗口，没有前一个窗口时丢弃；
// 空行在窗口内被过滤。
func SplitPlainText(text string) (sections []Section) {
	defer func() {
		if r := recover(); r != nil {
			sections = nil
		}
	}()

	lines := strings.Split(text, "\n")

	var windows [][]string
	for start := 0; start < len(lines); start += PlainTextWindowLines {
		end := start + PlainTextWindowLines
		if end > len(lines) {
			end = len(lines)
		}

		window := filterBlank(lines[start:end])
		if len(window) == 0 {
			continue
		}

		if end-start < PlainTextMinLines {
			if len(windows) > 0 {
				windows[len(windows)-1] = append(windows[len(windows)-1], window...)
			}
			// 没有前一个窗口时整段丢弃
			continue
		}
		windows = append(windows, window)
	}

	for i, window := range windows {
		sections = append(sections, newSection(i+1, window))
	}
	return sections
}

// isHeading 判断是否为一到三级标题行
func isHeading(line string) bool {
	if !strings.HasPrefix(line, "#") {
		return false
	}
	count := 0
	for _, ch := range line {
		if ch != '#' {
			break
		}
		count++
	}
	return count >= 1 && count <= 3
}

// cleanLines 去除空行和行尾空白，并判断是否含有非标题正文
func cleanLines(lines []string) ([]string, bool) {
	var cleaned []string
	hasBody := false

	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cleaned = append(cleaned, line)
		if !strings.HasPrefix(strings.TrimSpace(line), "#") {
			hasBody = true
		}
	}
	return cleaned, hasBody
}

// filterBlank 过滤空行
func filterBlank(lines []string) []string {
	var out []string
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// MergeForward 小片段向后合并策略
// sections[i]行数不足MinSectionLines且不是最后一个片段时，持续吸收后续片段
// 直到行数达标或没有更多片段；被吸收片段的下标通过absorbed返回，调用方
// 负责将其标记为已处理。尾部不足阈值的片段按原样返回。
func MergeForward(sections []Section, i int) (merged Section, absorbed []int) {
	merged = sections[i]
	if merged.LineCount >= MinSectionLines || i >= len(sections)-1 {
		return merged, nil
	}

	content := merged.Content
	lineCount := merged.LineCount
	for next := i + 1; lineCount < MinSectionLines && next < len(sections); next++ {
		content = content + "\n\n" + sections[next].Content
		lineCount = len(strings.Split(content, "\n"))
		absorbed = append(absorbed, next)
	}

	merged.Content = content
	merged.LineCount = lineCount
	return merged, absorbed
}
