package port

import (
	"context"

	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
)

// CurrentResultCacheItem 是 (plan, user) 最近一次已知结局的快照
type CurrentResultCacheItem struct {
	TenantID string                  `json:"tenantId"`
	Result   *domain.FlashSaleResult `json:"result"`
}

// CurrentResultCache 缓存客户端轮询用的最新结果
// 纯加速层：按 key 最后写入者胜，允许过期和丢失，和持久记录之间没有强一致保证
type CurrentResultCache interface {
	Set(ctx context.Context, planID, userID string, item *CurrentResultCacheItem) error

	// Get 未命中时返回 (nil, false, nil)
	Get(ctx context.Context, planID, userID string) (*CurrentResultCacheItem, bool, error)
}

// PreOrderTokenStore 保管预下单令牌，Order 阶段一次性消费
type PreOrderTokenStore interface {
	Put(ctx context.Context, planID, userID, token string) error

	// Take 取出并删除令牌，保证一个令牌只能换一次下单机会
	// 不存在时返回 ("", false, nil)
	Take(ctx context.Context, planID, userID string) (string, bool, error)
}
