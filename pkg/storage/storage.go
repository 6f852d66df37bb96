package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"
)

// ObjectInfo 归档对象的元数据
type ObjectInfo struct {
	Key  string // 对象键，runID/文件名
	Name string // 文件名
	Size int64  // 大小(字节)
}

// Archive 产出文件归档接口
// 批处理生成的CSV按运行ID归档，本地文件系统为默认实现，MinIO可选
type Archive interface {
	// Save 归档一个产出文件，同一运行内同名文件覆盖
	Save(ctx context.Context, runID string, reader io.Reader, filename string) (ObjectInfo, error)

	// Open 按对象键读取归档内容
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// List 列出某次运行的所有归档对象，runID为空时列出全部
	List(ctx context.Context, runID string) ([]ObjectInfo, error)

	// Delete 删除归档对象
	Delete(ctx context.Context, key string) error
}

// contentTypeFor 根据文件扩展名返回内容类型
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "text/csv"
	case ".md", ".markdown":
		return "text/markdown"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
