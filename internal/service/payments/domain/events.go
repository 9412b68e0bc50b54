package domain

import "time"

// RefundItemData 是变更事件里携带的明细快照
// StoreID / OrderID 用指针表达“上游可能没给”，同步时缺失即报错
type RefundItemData struct {
	ID            string  `json:"id"`
	PaymentItemID string  `json:"paymentItemId"`
	StoreID       *string `json:"storeId"`
	OrderID       *string `json:"orderId"`
	Amount        int64   `json:"amount"`
	Quantity      int     `json:"quantity"`
}

// RefundData 是支付服务广播的退款单快照
type RefundData struct {
	ID             string           `json:"id"`
	TenantID       string           `json:"tenantId"`
	PaymentID      string           `json:"paymentId"`
	DisplayReason  string           `json:"displayReason"`
	CustomerRemark string           `json:"customerRemark"`
	StaffRemark    string           `json:"staffRemark"`
	RefundedAmount int64            `json:"refundedAmount"`
	CompletedTime  *time.Time       `json:"completedTime"`
	Items          []RefundItemData `json:"items"`
}

// RefundCreatedEvent / RefundUpdatedEvent / RefundDeletedEvent
// 对应支付服务的实体创建、更新、删除广播
type RefundCreatedEvent struct {
	Entity RefundData `json:"entity"`
}

type RefundUpdatedEvent struct {
	Entity RefundData `json:"entity"`
}

type RefundDeletedEvent struct {
	Entity RefundData `json:"entity"`
}

// RefundCompletedEvent 在退款首次进入完成态时由电商侧对外广播
type RefundCompletedEvent struct {
	Refund *Refund `json:"refund"`
}
