package document

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser Markdown文档解析器
// 内容原样保留供按标题分段使用，只借助AST提取文档标题
type MarkdownParser struct{}

// NewMarkdownParser 创建新的Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件
func (p *MarkdownParser) Parse(filePath string) (*Document, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open markdown file: %v", err)
	}
	defer file.Close()

	doc, err := p.ParseReader(file, filePath)
	if err != nil {
		return nil, err
	}
	doc.Source = filePath
	return doc, nil
}

// ParseReader 从Reader解析Markdown内容
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown content: %v", err)
	}

	content := strings.TrimPrefix(string(raw), "\uFEFF")

	title := extractTitle([]byte(content))
	if title == "" {
		title = baseTitle(filename)
	}

	return &Document{
		Content: content,
		Title:   title,
		Source:  filename,
		Kind:    Markdown,
	}, nil
}

// extractTitle 从Markdown AST中提取第一个一级标题
func extractTitle(content []byte) string {
	mdParser := parser.NewWithExtensions(parser.CommonExtensions)
	root := mdParser.Parse(content)

	title := ""
	ast.WalkFunc(root, func(node ast.Node, entering bool) ast.WalkStatus {
		if title != "" {
			return ast.Terminate
		}
		heading, ok := node.(*ast.Heading)
		if !ok || !entering || heading.Level != 1 {
			return ast.GoToNext
		}
		title = strings.TrimSpace(headingText(heading))
		return ast.Terminate
	})
	return title
}

// headingText 拼接标题节点下所有文本叶子
func headingText(heading *ast.Heading) string {
	var sb strings.Builder
	ast.WalkFunc(heading, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch leaf := node.(type) {
		case *ast.Text:
			sb.Write(leaf.Literal)
		case *ast.Code:
			sb.Write(leaf.Literal)
		}
		return ast.GoToNext
	})
	return sb.String()
}
