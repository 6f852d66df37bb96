package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFParser PDF文档解析器
// 提取出的文本按纯文本处理，后续走行数窗口分段
type PDFParser struct{}

// NewPDFParser 创建新的PDF解析器
func NewPDFParser() Parser {
	return &PDFParser{}
}

// Parse 解析PDF文件并提取其文本内容
func (p *PDFParser) Parse(filePath string) (*Document, error) {
	tmpDir, err := os.MkdirTemp("", "pdf_extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(filePath, tmpDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract text from PDF: %v", err)
	}

	content, err := collectExtractedText(tmpDir)
	if err != nil {
		return nil, err
	}

	return &Document{
		Content: content,
		Title:   baseTitle(filePath),
		Source:  filePath,
		Kind:    PDF,
	}, nil
}

// ParseReader 从Reader解析PDF内容
// pdfcpu的内容提取以文件为单位，先落盘再提取
func (p *PDFParser) ParseReader(r io.Reader, filename string) (*Document, error) {
	tmpFile, err := os.CreateTemp("", "pdf_input_*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	if _, err := io.Copy(tmpFile, r); err != nil {
		return nil, fmt.Errorf("failed to buffer PDF content: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush PDF content: %v", err)
	}

	doc, err := p.Parse(tmpFile.Name())
	if err != nil {
		return nil, err
	}
	doc.Title = baseTitle(filename)
	doc.Source = filename
	return doc, nil
}

// collectExtractedText 按页码顺序拼接提取出的文本文件
func collectExtractedText(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted text dir: %v", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var allText strings.Builder
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if allText.Len() > 0 {
			allText.WriteString("\n\n")
		}
		allText.Write(data)
	}

	result := strings.TrimSpace(allText.String())
	if result == "" {
		return "", fmt.Errorf("no text content found in PDF")
	}
	return result, nil
}
