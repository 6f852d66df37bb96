package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ASCII-S/Memoride-Prototype/internal/backend"
	"github.com/ASCII-S/Memoride-Prototype/internal/cache"
)

// ModelService 模型列表服务
// 模型列表的拉取可能很慢，结果按后端名缓存
type ModelService struct {
	client backend.Client
	lists  *cache.ModelListCache
	logger *logrus.Logger
}

// NewModelService 创建模型列表服务
func NewModelService(client backend.Client, lists *cache.ModelListCache, logger *logrus.Logger) *ModelService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ModelService{
		client: client,
		lists:  lists,
		logger: logger,
	}
}

// ListModels 获取可用模型名列表，优先走缓存
func (s *ModelService) ListModels(ctx context.Context) ([]string, error) {
	if s.lists != nil {
		if models, found := s.lists.Get(ctx, s.client.Name()); found {
			return models, nil
		}
	}

	infos, err := s.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %v", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}

	if s.lists != nil {
		s.lists.Set(ctx, s.client.Name(), names)
	}
	s.logger.WithFields(logrus.Fields{
		"backend": s.client.Name(),
		"count":   len(names),
	}).Debug("已拉取模型列表")
	return names, nil
}

// Refresh 绕过缓存重新拉取模型列表
func (s *ModelService) Refresh(ctx context.Context) ([]string, error) {
	if s.lists != nil {
		s.lists.Invalidate(ctx, s.client.Name())
	}
	return s.ListModels(ctx)
}
