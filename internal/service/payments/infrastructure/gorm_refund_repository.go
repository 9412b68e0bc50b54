package infrastructure

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/zhangzw218/EShop/internal/service/payments/domain"
)

// GormRefundRepository 退款投影的 MySQL 实现，明细随主记录整体替换
type GormRefundRepository struct {
	db *gorm.DB
}

func NewGormRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

var _ domain.RefundRepository = (*GormRefundRepository)(nil)

func (r *GormRefundRepository) Find(ctx context.Context, tenantID, id string) (*domain.Refund, error) {
	var model RefundModel
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find refund %s", id)
	}
	return toDomainRefund(&model), nil
}

func (r *GormRefundRepository) Insert(ctx context.Context, refund *domain.Refund) error {
	if err := r.db.WithContext(ctx).Create(toRefundModel(refund)).Error; err != nil {
		return errors.Wrapf(err, "insert refund %s", refund.ID)
	}
	return nil
}

// Update 在一个事务里覆盖主记录并整体重建明细，对齐合并结果里的集合
func (r *GormRefundRepository) Update(ctx context.Context, refund *domain.Refund) error {
	model := toRefundModel(refund)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&RefundModel{}).
			Where("tenant_id = ? AND id = ?", refund.TenantID, refund.ID).
			Updates(map[string]interface{}{
				"display_reason":  model.DisplayReason,
				"customer_remark": model.CustomerRemark,
				"staff_remark":    model.StaffRemark,
				"refunded_amount": model.RefundedAmount,
				"completed_time":  model.CompletedTime,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrRefundNotFound
		}

		if err := tx.Where("refund_id = ?", refund.ID).Delete(&RefundItemModel{}).Error; err != nil {
			return err
		}
		if len(model.Items) > 0 {
			if err := tx.Create(model.Items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update refund %s: %w", refund.ID, err)
	}
	return nil
}

func (r *GormRefundRepository) Delete(ctx context.Context, tenantID, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("refund_id = ?", id).Delete(&RefundItemModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&RefundModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrRefundNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete refund %s: %w", id, err)
	}
	return nil
}

// GormPaymentRepository 支付单投影的只读访问
type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

var _ domain.PaymentRepository = (*GormPaymentRepository)(nil)

func (r *GormPaymentRepository) Find(ctx context.Context, tenantID, id string) (*domain.Payment, error) {
	var model PaymentModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find payment %s", id)
	}
	return &domain.Payment{
		ID:       model.ID,
		TenantID: model.TenantID,
		OrderID:  model.OrderID,
	}, nil
}
