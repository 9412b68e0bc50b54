package domain

import "errors"

var (
	// ErrStoreIDNotFound 表示退款明细缺少店铺 ID，数据不完整时立刻失败
	ErrStoreIDNotFound = errors.New("store id not found on refund item")

	// ErrOrderIDNotFound 表示退款明细缺少订单 ID
	ErrOrderIDNotFound = errors.New("order id not found on refund item")

	// ErrRefundNotFound 表示按 ID 找不到退款单
	ErrRefundNotFound = errors.New("refund not found")

	// ErrPaymentNotFound 表示退款引用的支付单不存在
	ErrPaymentNotFound = errors.New("payment not found")
)
