package domain

import "time"

// FlashSalePlan 是一场秒杀活动：一个 (店铺, 商品, SKU) 上的限量限时折扣
// 公布之后除剩余库存递减外不可变
type FlashSalePlan struct {
	ID           string
	TenantID     string
	StoreID      string
	ProductID    string
	ProductSkuID string

	BeginTime time.Time
	EndTime   time.Time

	// TotalCount 是活动的库存池总量，剩余数量的权威来源在库存提供者那里
	TotalCount int64

	Published bool
}

// IsInProgress 判断 now 是否落在活动时间窗内
func (p *FlashSalePlan) IsInProgress(now time.Time) bool {
	return p.Published && !now.Before(p.BeginTime) && now.Before(p.EndTime)
}
