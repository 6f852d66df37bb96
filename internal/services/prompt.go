package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PromptInfo 提示词库中的一项
type PromptInfo struct {
	Name string `json:"name"` // 提示词名，即去掉扩展名的文件名
}

// PromptLibrary 系统提示词库
// 提示词以文本文件存放在一个目录里，按名字选用
type PromptLibrary struct {
	dir string
}

// promptExtensions 识别为提示词的文件扩展名
var promptExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// NewPromptLibrary 创建提示词库
func NewPromptLibrary(dir string) (*PromptLibrary, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create prompt directory: %v", err)
	}
	return &PromptLibrary{dir: dir}, nil
}

// List 列出库中所有提示词，按名字排序
func (l *PromptLibrary) List() ([]PromptInfo, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt directory: %v", err)
	}

	var prompts []PromptInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !promptExtensions[ext] {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		prompts = append(prompts, PromptInfo{Name: name})
	}

	sort.Slice(prompts, func(i, j int) bool { return prompts[i].Name < prompts[j].Name })
	return prompts, nil
}

// Get 按名字读取提示词内容
func (l *PromptLibrary) Get(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid prompt name: %s", name)
	}

	for ext := range promptExtensions {
		data, err := os.ReadFile(filepath.Join(l.dir, name+ext))
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read prompt: %v", err)
		}
	}
	return "", fmt.Errorf("prompt not found: %s", name)
}

// Save 写入或覆盖一个提示词
func (l *PromptLibrary) Save(name, content string) error {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid prompt name: %s", name)
	}
	return os.WriteFile(filepath.Join(l.dir, name+".txt"), []byte(content), 0644)
}
