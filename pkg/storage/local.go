package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalArchive 本地文件系统归档
type LocalArchive struct {
	basePath string
}

// LocalConfig 本地归档配置
type LocalConfig struct {
	Path string // 归档根目录
}

// NewLocalArchive 创建本地归档
func NewLocalArchive(cfg LocalConfig) (*LocalArchive, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %v", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %v", err)
	}
	return &LocalArchive{basePath: absPath}, nil
}

// Save 把产出文件写入runID目录下
func (a *LocalArchive) Save(_ context.Context, runID string, reader io.Reader, filename string) (ObjectInfo, error) {
	name := filepath.Base(filename)
	dir := filepath.Join(a.basePath, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to create run directory: %v", err)
	}

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to create archive file: %v", err)
	}
	defer file.Close()

	size, err := io.Copy(file, reader)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to write archive file: %v", err)
	}

	return ObjectInfo{
		Key:  filepath.ToSlash(filepath.Join(runID, name)),
		Name: name,
		Size: size,
	}, nil
}

// Open 按对象键读取归档内容
func (a *LocalArchive) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := a.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("archive object not found: %s", key)
		}
		return nil, fmt.Errorf("failed to open archive file: %v", err)
	}
	return file, nil
}

// List 列出某次运行的所有归档对象
func (a *LocalArchive) List(_ context.Context, runID string) ([]ObjectInfo, error) {
	root := a.basePath
	if runID != "" {
		root = filepath.Join(a.basePath, runID)
		if _, err := os.Stat(root); os.IsNotExist(err) {
			return nil, nil
		}
	}

	var objects []ObjectInfo
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(a.basePath, path)
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{
			Key:  filepath.ToSlash(rel),
			Name: info.Name(),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %v", err)
	}
	return objects, nil
}

// Delete 删除归档对象
func (a *LocalArchive) Delete(_ context.Context, key string) error {
	path, err := a.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("archive object not found: %s", key)
		}
		return fmt.Errorf("failed to delete archive file: %v", err)
	}
	return nil
}

// resolve 把对象键转换为base之下的安全路径
func (a *LocalArchive) resolve(key string) (string, error) {
	path := filepath.Join(a.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(a.basePath, path)
	if err != nil || rel == ".." || filepath.IsAbs(rel) || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return "", fmt.Errorf("invalid archive key: %s", key)
	}
	return path, nil
}
