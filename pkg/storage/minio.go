package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioArchive MinIO对象存储归档
// 多实例部署或需要长期保存产出时使用
type MinioArchive struct {
	client *minio.Client
	bucket string
}

// MinioConfig MinIO归档配置
type MinioConfig struct {
	Endpoint  string // 服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
}

// NewMinioArchive 创建MinIO归档，存储桶不存在时自动创建
func NewMinioArchive(cfg MinioConfig) (*MinioArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %v", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %v", err)
		}
	}

	return &MinioArchive{client: client, bucket: cfg.Bucket}, nil
}

// Save 上传产出文件到runID前缀下
// CSV文件通常很小，整体读入后上传
func (a *MinioArchive) Save(ctx context.Context, runID string, reader io.Reader, filename string) (ObjectInfo, error) {
	name := filepath.Base(filename)
	key := runID + "/" + name

	content, err := io.ReadAll(reader)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to read content: %v", err)
	}

	_, err = a.client.PutObject(
		ctx,
		a.bucket,
		key,
		bytes.NewReader(content),
		int64(len(content)),
		minio.PutObjectOptions{ContentType: contentTypeFor(name)},
	)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to upload object: %v", err)
	}

	return ObjectInfo{Key: key, Name: name, Size: int64(len(content))}, nil
}

// Open 按对象键读取归档内容
func (a *MinioArchive) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %v", err)
	}
	// GetObject是懒加载的，先确认对象存在
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("archive object not found: %s", key)
	}
	return obj, nil
}

// List 列出某次运行的所有归档对象
func (a *MinioArchive) List(ctx context.Context, runID string) ([]ObjectInfo, error) {
	prefix := ""
	if runID != "" {
		prefix = runID + "/"
	}

	var objects []ObjectInfo
	for object := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %v", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:  object.Key,
			Name: filepath.Base(object.Key),
			Size: object.Size,
		})
	}
	return objects, nil
}

// Delete 删除归档对象
func (a *MinioArchive) Delete(ctx context.Context, key string) error {
	if err := a.client.RemoveObject(ctx, a.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %v", err)
	}
	return nil
}
