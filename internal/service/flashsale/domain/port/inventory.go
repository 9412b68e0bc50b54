package port

import "context"

// InventoryProvider 是单个库存后端的出站端口，按名字注册
// 实现必须对同一 SKU 的并发调用安全：扣减是存储层的原子条件递减，
// 不允许读-改-写
type InventoryProvider interface {
	// TryReserve 原子扣减库存，余量不足返回 (false, nil) 而不是错误
	TryReserve(ctx context.Context, tenantID, storeID, productID, skuID string, quantity int64) (bool, error)

	// TryRollBack 归还一个先前预留的单位
	// 无可回滚（已回滚过、记录缺失）时返回 (false, nil)，调用方按软失败处理
	TryRollBack(ctx context.Context, tenantID, storeID, productID, skuID string) (bool, error)
}
