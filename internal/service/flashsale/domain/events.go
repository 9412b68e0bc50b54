package domain

import "time"

// PlanSnapshot 是随事件携带的活动快照
// 冗余 store/product/sku 字段，处理事件时不必回查活动表
type PlanSnapshot struct {
	ID           string `json:"id"`
	StoreID      string `json:"storeId"`
	ProductID    string `json:"productId"`
	ProductSkuID string `json:"productSkuId"`
}

// CreateFlashSaleResultEvent 是预下单成功后发布的入站事件
// ResultID 由发布方生成，作为整条链路的幂等键
type CreateFlashSaleResultEvent struct {
	TenantID                     string       `json:"tenantId"`
	ResultID                     string       `json:"resultId"`
	UserID                       string       `json:"userId"`
	CustomerRemark               string       `json:"customerRemark"`
	Plan                         PlanSnapshot `json:"plan"`
	HashToken                    string       `json:"hashToken"`
	ReducedInventoryTime         time.Time    `json:"reducedInventoryTime"`
	ProductInventoryProviderName string       `json:"productInventoryProviderName"`
}

// CreateFlashSaleOrderEvent 是编排器在首见路径上发布的出站事件
// 下游订单服务按 ResultID 去重
type CreateFlashSaleOrderEvent struct {
	TenantID       string       `json:"tenantId"`
	ResultID       string       `json:"resultId"`
	UserID         string       `json:"userId"`
	CustomerRemark string       `json:"customerRemark"`
	Plan           PlanSnapshot `json:"plan"`
	HashToken      string       `json:"hashToken"`
}

// FlashSaleOrderCreatedEvent 是订单管道回报的成功结局
type FlashSaleOrderCreatedEvent struct {
	TenantID                     string       `json:"tenantId"`
	ResultID                     string       `json:"resultId"`
	OrderID                      string       `json:"orderId"`
	UserID                       string       `json:"userId"`
	Plan                         PlanSnapshot `json:"plan"`
	ProductInventoryProviderName string       `json:"productInventoryProviderName"`
}

// FlashSaleOrderCreationFailedEvent 是订单管道回报的失败结局
// 处理方需要把结果置为 Failed 并回补库存
type FlashSaleOrderCreationFailedEvent struct {
	TenantID                     string       `json:"tenantId"`
	ResultID                     string       `json:"resultId"`
	UserID                       string       `json:"userId"`
	Plan                         PlanSnapshot `json:"plan"`
	Reason                       string       `json:"reason"`
	ProductInventoryProviderName string       `json:"productInventoryProviderName"`
}

// FlashSaleResultCompletedEvent 在结果进入终态成功时对外广播
type FlashSaleResultCompletedEvent struct {
	TenantID string `json:"tenantId"`
	ResultID string `json:"resultId"`
	PlanID   string `json:"planId"`
	UserID   string `json:"userId"`
	OrderID  string `json:"orderId"`
}
