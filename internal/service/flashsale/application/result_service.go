package application

import (
	"context"

	"github.com/zhangzw218/EShop/internal/pkg/logger"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
)

// ResultService 是结果的查询面
type ResultService struct {
	repo  domain.FlashSaleResultRepository
	cache port.CurrentResultCache
}

func NewResultService(repo domain.FlashSaleResultRepository, cache port.CurrentResultCache) *ResultService {
	return &ResultService{repo: repo, cache: cache}
}

// Get 按 ID 查询，普通用户只能看自己的记录
func (s *ResultService) Get(ctx context.Context, tenantID, callerUserID, id string) (*FlashSaleResultDTO, error) {
	result, err := s.repo.Find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if result.UserID != callerUserID {
		return nil, domain.ErrNotResultOwner
	}
	return toResultDTO(result), nil
}

// List 按过滤条件查询
func (s *ResultService) List(ctx context.Context, tenantID string, filter domain.ResultListFilter) ([]*FlashSaleResultDTO, error) {
	results, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	dtos := make([]*FlashSaleResultDTO, 0, len(results))
	for _, r := range results {
		dtos = append(dtos, toResultDTO(r))
	}
	return dtos, nil
}

// GetCurrent 返回 (plan, user) 最近一次已知结局，客户端轮询走这里
// 先打缓存，未命中再查库并回填；缓存只是加速层，读写失败都不致命
func (s *ResultService) GetCurrent(ctx context.Context, tenantID, planID, userID string) (*FlashSaleResultDTO, error) {
	item, hit, err := s.cache.Get(ctx, planID, userID)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("planId", planID).
			Str("userId", userID).
			Msg("current result cache read failed")
	}
	if hit && item.Result != nil {
		return toResultDTO(item.Result), nil
	}

	result, err := s.repo.FindOngoing(ctx, tenantID, planID, userID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, domain.ErrResultNotFound
	}

	if err := s.cache.Set(ctx, planID, userID, &port.CurrentResultCacheItem{
		TenantID: result.TenantID,
		Result:   result,
	}); err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("planId", planID).
			Str("userId", userID).
			Msg("current result cache warm-back failed")
	}

	return toResultDTO(result), nil
}
