package domain

import "time"

// FlashSaleResultStatus 是一次抢购尝试的状态
type FlashSaleResultStatus string

const (
	ResultStatusPending   FlashSaleResultStatus = "Pending"
	ResultStatusSucceeded FlashSaleResultStatus = "Succeeded"
	ResultStatusFailed    FlashSaleResultStatus = "Failed"
)

// FlashSaleResult 是 (plan, user) 一次抢购尝试的记录
//
// ID 由发起侧的事件指定而不是入库时生成，同一逻辑尝试在重投递下
// 始终映射到同一个 ID，这是幂等去重的关键。
// 核心不变量：任意时刻每个 (PlanID, UserID) 至多存在一条非 Failed 记录，
// 由编排器在分布式锁的临界区内保证。
type FlashSaleResult struct {
	ID       string
	TenantID string
	StoreID  string
	PlanID   string
	UserID   string

	Status FlashSaleResultStatus

	// OrderID 在下游订单真正落地前为空
	OrderID string

	ReducedInventoryTime time.Time
}

// NewFlashSaleResult 以 Pending 状态构造一条结果记录
func NewFlashSaleResult(id, tenantID, storeID, planID, userID string, reducedInventoryTime time.Time) *FlashSaleResult {
	return &FlashSaleResult{
		ID:                   id,
		TenantID:             tenantID,
		StoreID:              storeID,
		PlanID:               planID,
		UserID:               userID,
		Status:               ResultStatusPending,
		ReducedInventoryTime: reducedInventoryTime,
	}
}

// MarkSucceeded 在下游订单创建成功后调用
func (r *FlashSaleResult) MarkSucceeded(orderID string) {
	r.Status = ResultStatusSucceeded
	r.OrderID = orderID
}

// MarkFailed 在下游订单创建失败后调用
func (r *FlashSaleResult) MarkFailed() {
	r.Status = ResultStatusFailed
}

// IsOngoing 报告该记录是否占据着 (plan, user) 的唯一名额
func (r *FlashSaleResult) IsOngoing() bool {
	return r.Status != ResultStatusFailed
}
