package port

import (
	"context"

	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
)

// EventPublisher 是秒杀子系统的出站事件端口，由 kafka 适配器实现
type EventPublisher interface {
	// PublishCreateResult 由下单服务在库存预留成功后调用
	PublishCreateResult(ctx context.Context, event *domain.CreateFlashSaleResultEvent) error

	// PublishCreateOrder 由编排器在首见路径上调用
	PublishCreateOrder(ctx context.Context, event *domain.CreateFlashSaleOrderEvent) error

	// PublishResultCompleted 在结果进入终态成功时广播
	PublishResultCompleted(ctx context.Context, event *domain.FlashSaleResultCompletedEvent) error
}

// ResultNotifier 把已解决的结果推送给在线用户（websocket 网关实现）
// 尽力而为，推送失败不影响主流程
type ResultNotifier interface {
	NotifyResult(ctx context.Context, userID string, result *domain.FlashSaleResult)
}
