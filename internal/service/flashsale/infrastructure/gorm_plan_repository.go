package infrastructure

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
)

// GormPlanRepository 是活动表的只读 GORM 仓储
// 活动的写入方在目录子系统，这里不提供增删改
type GormPlanRepository struct {
	db *gorm.DB
}

func NewGormPlanRepository(db *gorm.DB) *GormPlanRepository {
	return &GormPlanRepository{db: db}
}

func (r *GormPlanRepository) Find(ctx context.Context, tenantID, id string) (*domain.FlashSalePlan, error) {
	var model FlashSalePlanModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, err
	}
	return toDomainPlan(&model), nil
}
