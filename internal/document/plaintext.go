package document

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// PlainTextParser 纯文本解析器
type PlainTextParser struct{}

// NewPlainTextParser 创建新的纯文本解析器
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse 读取纯文本文件
func (p *PlainTextParser) Parse(filePath string) (*Document, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open text file: %v", err)
	}
	defer file.Close()

	doc, err := p.ParseReader(file, filePath)
	if err != nil {
		return nil, err
	}
	doc.Source = filePath
	return doc, nil
}

// ParseReader 从Reader读取纯文本内容
func (p *PlainTextParser) ParseReader(r io.Reader, filename string) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read text content: %v", err)
	}

	content := strings.TrimPrefix(string(raw), "\uFEFF")

	return &Document{
		Content: content,
		Title:   baseTitle(filename),
		Source:  filename,
		Kind:    PlainText,
	}, nil
}
