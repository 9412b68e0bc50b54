package domain

import "context"

// RefundRepository 持久化退款投影，明细随主记录整体读写
type RefundRepository interface {
	// Find 按 ID 查找，不存在时返回 (nil, nil)
	Find(ctx context.Context, tenantID, id string) (*Refund, error)

	Insert(ctx context.Context, refund *Refund) error

	// Update 整体覆盖，包括明细的增删
	Update(ctx context.Context, refund *Refund) error

	// Delete 不存在时返回 ErrRefundNotFound
	Delete(ctx context.Context, tenantID, id string) error
}

// PaymentRepository 只读访问支付单投影
type PaymentRepository interface {
	// Find 不存在时返回 (nil, nil)
	Find(ctx context.Context, tenantID, id string) (*Payment, error)
}
