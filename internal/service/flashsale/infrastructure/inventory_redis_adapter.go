package infrastructure

import (
	"context"
	"fmt"

	redislib "github.com/redis/go-redis/v9"

	"github.com/zhangzw218/EShop/internal/pkg/redis"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
)

const (
	reserveScriptName  = "flashsale_inventory_reserve"
	rollbackScriptName = "flashsale_inventory_rollback"

	// KEYS[1] 余量 KEYS[2] 已占用，整段脚本原子执行
	reserveScript = `
local stock = tonumber(redis.call('GET', KEYS[1]) or '0')
local quantity = tonumber(ARGV[1])
if stock < quantity then
    return 0
end
redis.call('DECRBY', KEYS[1], quantity)
redis.call('INCRBY', KEYS[2], quantity)
return 1
`

	// 回滚量不能超过已占用量，防止重复投递把库存加穿
	rollbackScript = `
local reserved = tonumber(redis.call('GET', KEYS[2]) or '0')
local quantity = tonumber(ARGV[1])
if reserved < quantity then
    return 0
end
redis.call('DECRBY', KEYS[2], quantity)
redis.call('INCRBY', KEYS[1], quantity)
return 1
`
)

// RedisInventoryProvider 基于 Redis 的秒杀库存扣减
//
// 每个 SKU 维护一对计数器：stock 是剩余可售量，reserved 是已被
// 占用但尚未确认的量。扣减和回滚都走 Lua 脚本保证原子性，回滚以
// reserved 为上界，天然幂等。
type RedisInventoryProvider struct {
	client *redis.Client
}

func NewRedisInventoryProvider(client *redis.Client) (*RedisInventoryProvider, error) {
	if err := client.LoadScriptFromContent(reserveScriptName, reserveScript); err != nil {
		return nil, err
	}
	if err := client.LoadScriptFromContent(rollbackScriptName, rollbackScript); err != nil {
		return nil, err
	}
	return &RedisInventoryProvider{client: client}, nil
}

var _ port.InventoryProvider = (*RedisInventoryProvider)(nil)

func inventoryKeys(tenantID, storeID, productID, skuID string) []string {
	base := fmt.Sprintf("eshop:flashsale:inventory:%s:%s:%s:%s", tenantID, storeID, productID, skuID)
	return []string{base + ":stock", base + ":reserved"}
}

// TryReserve 原子扣减 quantity 件库存，余量不足时返回 false
func (p *RedisInventoryProvider) TryReserve(ctx context.Context, tenantID, storeID, productID, skuID string, quantity int64) (bool, error) {
	result, err := p.client.RunScript(ctx, reserveScriptName,
		inventoryKeys(tenantID, storeID, productID, skuID), quantity)
	if err != nil {
		return false, fmt.Errorf("run reserve script: %w", err)
	}
	n, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected reserve script result %T", result)
	}
	return n == 1, nil
}

// TryRollBack 归还一件已占用的库存，occupied 已为零时返回 false
func (p *RedisInventoryProvider) TryRollBack(ctx context.Context, tenantID, storeID, productID, skuID string) (bool, error) {
	result, err := p.client.RunScript(ctx, rollbackScriptName,
		inventoryKeys(tenantID, storeID, productID, skuID), 1)
	if err != nil {
		return false, fmt.Errorf("run rollback script: %w", err)
	}
	n, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected rollback script result %T", result)
	}
	return n == 1, nil
}

// SetStock 设置某 SKU 的初始库存并清零占用量，预热用
func (p *RedisInventoryProvider) SetStock(ctx context.Context, tenantID, storeID, productID, skuID string, count int64) error {
	keys := inventoryKeys(tenantID, storeID, productID, skuID)
	_, err := p.client.GetClient().Pipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.Set(ctx, keys[0], count, 0)
		pipe.Set(ctx, keys[1], 0, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set stock for sku %s: %w", skuID, err)
	}
	return nil
}
