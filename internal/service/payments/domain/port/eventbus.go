package port

import (
	"context"

	"github.com/zhangzw218/EShop/internal/service/payments/domain"
)

// RefundEventPublisher 是支付子系统的出站事件端口
type RefundEventPublisher interface {
	// PublishRefundCompleted 在退款首次进入完成态时调用
	PublishRefundCompleted(ctx context.Context, event *domain.RefundCompletedEvent) error
}
