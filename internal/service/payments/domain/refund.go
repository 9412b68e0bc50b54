package domain

import "time"

// Refund 是支付侧退款单在电商侧的投影
// 权威数据在支付服务，这里通过实体变更事件同步一份加了店铺/订单维度的副本
type Refund struct {
	ID             string
	TenantID       string
	PaymentID      string
	DisplayReason  string
	CustomerRemark string
	StaffRemark    string
	RefundedAmount int64 // 最小货币单位
	CompletedTime  *time.Time
	Items          []RefundItem
}

// RefundItem 是退款单的店铺维度明细
// StoreID 和 OrderID 是电商侧补齐的必填字段
type RefundItem struct {
	ID            string
	PaymentItemID string
	StoreID       string
	OrderID       string
	Amount        int64
	Quantity      int
}

// IsCompleted 判断退款是否已到终态
func (r *Refund) IsCompleted() bool {
	return r.CompletedTime != nil
}

// Payment 是支付单的最小投影，同步退款时只用来校验归属
type Payment struct {
	ID       string
	TenantID string
	OrderID  string
}
