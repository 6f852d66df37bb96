package document

import (
	"io"
	"path/filepath"
	"strings"
)

// Parser 文档解析器接口
// 负责将不同格式的文档读取为可分段的文本
type Parser interface {
	// Parse 解析文档，返回文档内容
	Parse(filePath string) (*Document, error)

	// ParseReader 从Reader解析文档
	// filename用于确定文档类型和标题兜底
	ParseReader(r io.Reader, filename string) (*Document, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
)

// Document 解析后的文档
// Content保留原始文本，分段逻辑不在此层做
type Document struct {
	Content string      // 文档文本内容
	Title   string      // 文档标题，无法提取时为文件名
	Source  string      // 源文件路径
	Kind    ContentType // 内容类型，决定后续分段方式
}

// ParserFactory 解析器工厂函数，根据文件类型创建对应的解析器
// 未知扩展名按纯文本处理
func ParserFactory(filePath string) Parser {
	switch DetectContentType(filePath) {
	case PDF:
		return NewPDFParser()
	case Markdown:
		return NewMarkdownParser()
	default:
		return NewPlainTextParser()
	}
}

// DetectContentType 根据文件扩展名检测内容类型
func DetectContentType(filePath string) ContentType {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	default:
		return PlainText
	}
}

// baseTitle 以去掉扩展名的文件名作为标题兜底
func baseTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
