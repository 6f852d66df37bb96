package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeTempPDF(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.pdf")

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 10, text, "", "", false)
	require.NoError(t, pdf.OutputFileAndClose(path))
	return path
}

// TestDetectContentType 测试类型识别
func TestDetectContentType(t *testing.T) {
	assert.Equal(t, Markdown, DetectContentType("notes.md"))
	assert.Equal(t, Markdown, DetectContentType("NOTES.MARKDOWN"))
	assert.Equal(t, PDF, DetectContentType("paper.pdf"))
	assert.Equal(t, PlainText, DetectContentType("readme.txt"))
	assert.Equal(t, PlainText, DetectContentType("dump.log"), "未知扩展名按纯文本处理")
}

// TestMarkdownParser 测试Markdown解析
func TestMarkdownParser(t *testing.T) {
	t.Run("content preserved raw", func(t *testing.T) {
		raw := "# Go 并发\n## goroutine\n代码 `go f()` 启动\n"
		path := writeTempFile(t, "go.md", raw)

		doc, err := NewMarkdownParser().Parse(path)
		require.NoError(t, err)
		assert.Equal(t, raw, doc.Content, "内容应原样保留供分段使用")
		assert.Equal(t, Markdown, doc.Kind)
		assert.Equal(t, path, doc.Source)
	})

	t.Run("title from first level-1 heading", func(t *testing.T) {
		path := writeTempFile(t, "x.md", "前言文字\n# Go 并发模型\n## 小节\n")
		doc, err := NewMarkdownParser().Parse(path)
		require.NoError(t, err)
		assert.Equal(t, "Go 并发模型", doc.Title)
	})

	t.Run("title falls back to filename", func(t *testing.T) {
		path := writeTempFile(t, "fallback.md", "## 只有二级标题\n正文\n")
		doc, err := NewMarkdownParser().Parse(path)
		require.NoError(t, err)
		assert.Equal(t, "fallback", doc.Title)
	})

	t.Run("reader variant", func(t *testing.T) {
		doc, err := NewMarkdownParser().ParseReader(strings.NewReader("# 标题\n正文"), "mem.md")
		require.NoError(t, err)
		assert.Equal(t, "标题", doc.Title)
		assert.Equal(t, "mem.md", doc.Source)
	})
}

// TestPlainTextParser 测试纯文本解析
func TestPlainTextParser(t *testing.T) {
	path := writeTempFile(t, "notes.txt", "第一行\n第二行\n")

	doc, err := NewPlainTextParser().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "第一行\n第二行\n", doc.Content)
	assert.Equal(t, "notes", doc.Title)
	assert.Equal(t, PlainText, doc.Kind)
}

// TestPDFParser 测试PDF文本提取
func TestPDFParser(t *testing.T) {
	path := writeTempPDF(t, "Concurrency in Go uses goroutines and channels.")

	doc, err := NewPDFParser().Parse(path)
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "goroutines")
	assert.Equal(t, "sample", doc.Title)
	assert.Equal(t, PDF, doc.Kind)
}

// TestParserFactory 测试工厂分派
func TestParserFactory(t *testing.T) {
	assert.IsType(t, &MarkdownParser{}, ParserFactory("a.md"))
	assert.IsType(t, &PDFParser{}, ParserFactory("a.pdf"))
	assert.IsType(t, &PlainTextParser{}, ParserFactory("a.txt"))
	assert.IsType(t, &PlainTextParser{}, ParserFactory("a.unknown"))
}

// TestParseMissingFile 文件不存在时返回错误
func TestParseMissingFile(t *testing.T) {
	_, err := NewMarkdownParser().Parse("/no/such/file.md")
	assert.Error(t, err)
	_, err = NewPlainTextParser().Parse("/no/such/file.txt")
	assert.Error(t, err)
}
