package domain

import "context"

// FlashSaleResultRepository 是结果记录的持久化接口，由基础设施层实现
type FlashSaleResultRepository interface {
	// Insert 新增一条结果记录，ID 冲突视为错误
	Insert(ctx context.Context, result *FlashSaleResult) error

	// Find 按 ID 查找，不存在时返回 ErrResultNotFound
	Find(ctx context.Context, tenantID, id string) (*FlashSaleResult, error)

	// FindOngoing 查找 (plan, user) 当前占位的非 Failed 记录
	// 没有时返回 (nil, nil)——不存在不是错误，编排器靠它区分首见和重复
	FindOngoing(ctx context.Context, tenantID, planID, userID string) (*FlashSaleResult, error)

	// Update 覆盖写回状态变更
	Update(ctx context.Context, result *FlashSaleResult) error

	// List 按过滤条件分页查询
	List(ctx context.Context, tenantID string, filter ResultListFilter) ([]*FlashSaleResult, error)
}

// ResultListFilter 的 nil 字段表示不过滤
type ResultListFilter struct {
	StoreID *string
	PlanID  *string
	UserID  *string
	Status  *FlashSaleResultStatus
	OrderID *string

	Offset int
	Limit  int
}

// FlashSalePlanRepository 是活动的只读仓储
// 活动的增删改属于目录子系统，这里只消费
type FlashSalePlanRepository interface {
	Find(ctx context.Context, tenantID, id string) (*FlashSalePlan, error)
}
