package application

import (
	"context"

	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
)

// InventoryManager 按名字把调用分发到注册的库存提供者
// 事件里携带 ProductInventoryProviderName，不同活动可以使用不同的库存后端
type InventoryManager struct {
	providers map[string]port.InventoryProvider
}

func NewInventoryManager() *InventoryManager {
	return &InventoryManager{providers: make(map[string]port.InventoryProvider)}
}

// Register 注册一个命名提供者，重名时后注册者覆盖
// 只应在组装阶段调用，运行期不加锁
func (m *InventoryManager) Register(name string, provider port.InventoryProvider) {
	m.providers[name] = provider
}

// TryReserve 原子预留一个单位，库存不足返回 (false, nil)
func (m *InventoryManager) TryReserve(ctx context.Context, tenantID, providerName, storeID, productID, skuID string, quantity int64) (bool, error) {
	provider, ok := m.providers[providerName]
	if !ok {
		return false, domain.ErrInventoryProviderNotFound
	}
	return provider.TryReserve(ctx, tenantID, storeID, productID, skuID, quantity)
}

// TryRollBackInventory 归还一个先前预留的单位，软失败返回 (false, nil)
func (m *InventoryManager) TryRollBackInventory(ctx context.Context, tenantID, providerName, storeID, productID, skuID string) (bool, error) {
	provider, ok := m.providers[providerName]
	if !ok {
		return false, domain.ErrInventoryProviderNotFound
	}
	return provider.TryRollBack(ctx, tenantID, storeID, productID, skuID)
}
