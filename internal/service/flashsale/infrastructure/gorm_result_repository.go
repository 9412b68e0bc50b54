package infrastructure

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
)

// GormResultRepository 是 FlashSaleResultRepository 的 GORM 实现
type GormResultRepository struct {
	db *gorm.DB
}

func NewGormResultRepository(db *gorm.DB) *GormResultRepository {
	return &GormResultRepository{db: db}
}

func (r *GormResultRepository) Insert(ctx context.Context, result *domain.FlashSaleResult) error {
	return r.db.WithContext(ctx).Create(toResultModel(result)).Error
}

func (r *GormResultRepository) Find(ctx context.Context, tenantID, id string) (*domain.FlashSaleResult, error) {
	var model FlashSaleResultModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrResultNotFound
		}
		return nil, err
	}
	return toDomainResult(&model), nil
}

// FindOngoing 查 (plan, user) 当前占位的非 Failed 记录
// 只在编排器的锁临界区内调用，不存在返回 (nil, nil)
func (r *GormResultRepository) FindOngoing(ctx context.Context, tenantID, planID, userID string) (*domain.FlashSaleResult, error) {
	var model FlashSaleResultModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND plan_id = ? AND user_id = ? AND status <> ?",
			tenantID, planID, userID, string(domain.ResultStatusFailed)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainResult(&model), nil
}

func (r *GormResultRepository) Update(ctx context.Context, result *domain.FlashSaleResult) error {
	model := toResultModel(result)
	tx := r.db.WithContext(ctx).
		Model(&FlashSaleResultModel{}).
		Where("tenant_id = ? AND id = ?", result.TenantID, result.ID).
		Updates(map[string]interface{}{
			"status":   model.Status,
			"order_id": model.OrderID,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrResultNotFound
	}
	return nil
}

func (r *GormResultRepository) List(ctx context.Context, tenantID string, filter domain.ResultListFilter) ([]*domain.FlashSaleResult, error) {
	query := r.db.WithContext(ctx).
		Model(&FlashSaleResultModel{}).
		Where("tenant_id = ?", tenantID)

	if filter.StoreID != nil {
		query = query.Where("store_id = ?", *filter.StoreID)
	}
	if filter.PlanID != nil {
		query = query.Where("plan_id = ?", *filter.PlanID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []FlashSaleResultModel
	if err := query.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	results := make([]*domain.FlashSaleResult, 0, len(models))
	for i := range models {
		results = append(results, toDomainResult(&models[i]))
	}
	return results, nil
}
