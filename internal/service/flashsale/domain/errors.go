package domain

import "errors"

var (
	// ErrConcurrentResultCreation 在分布式锁等待超时时返回
	// 对本次调用是致命错误，是否重投递由消息总线决定
	ErrConcurrentResultCreation = errors.New("concurrent flash sale result creation")

	// ErrResultNotFound 结果记录不存在
	ErrResultNotFound = errors.New("flash sale result not found")

	// ErrPlanNotFound 活动不存在
	ErrPlanNotFound = errors.New("flash sale plan not found")

	// ErrPlanNotInProgress 活动不在进行中（未开始、已结束或未发布）
	ErrPlanNotInProgress = errors.New("flash sale plan is not in progress")

	// ErrInvalidPreOrderToken 预下单令牌缺失、过期或不匹配
	ErrInvalidPreOrderToken = errors.New("invalid or expired pre-order token")

	// ErrInsufficientInventory 库存不足，业务性拒绝而非系统故障
	ErrInsufficientInventory = errors.New("insufficient flash sale inventory")

	// ErrInventoryProviderNotFound 事件指定的库存提供者没有注册
	ErrInventoryProviderNotFound = errors.New("product inventory provider not found")

	// ErrNotResultOwner 查询者不是这条结果的归属用户
	ErrNotResultOwner = errors.New("flash sale result belongs to another user")
)
