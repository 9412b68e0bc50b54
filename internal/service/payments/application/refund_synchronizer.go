package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhangzw218/EShop/internal/pkg/logger"
	"github.com/zhangzw218/EShop/internal/service/payments/domain"
	"github.com/zhangzw218/EShop/internal/service/payments/domain/port"
)

// MergeRefund 把上游快照合并进本地投影，返回合并后的新对象
//
// 纯函数：不触碰存储，也不修改两个入参。existing 为 nil 表示首次同步。
// 明细按 ID 做集合对账：快照里有而本地没有的新增，两边都有的覆盖，
// 本地有而快照没有的删除。第二个返回值表示这次合并让退款首次进入
// 完成态，调用方据此广播完成事件，重复投递不会二次广播。
func MergeRefund(existing *domain.Refund, incoming *domain.RefundData) (*domain.Refund, bool, error) {
	items := make([]domain.RefundItem, 0, len(incoming.Items))
	for i := range incoming.Items {
		data := &incoming.Items[i]
		if data.StoreID == nil {
			return nil, false, fmt.Errorf("refund item %s: %w", data.ID, domain.ErrStoreIDNotFound)
		}
		if data.OrderID == nil {
			return nil, false, fmt.Errorf("refund item %s: %w", data.ID, domain.ErrOrderIDNotFound)
		}
		items = append(items, domain.RefundItem{
			ID:            data.ID,
			PaymentItemID: data.PaymentItemID,
			StoreID:       *data.StoreID,
			OrderID:       *data.OrderID,
			Amount:        data.Amount,
			Quantity:      data.Quantity,
		})
	}

	merged := &domain.Refund{
		ID:             incoming.ID,
		TenantID:       incoming.TenantID,
		PaymentID:      incoming.PaymentID,
		DisplayReason:  incoming.DisplayReason,
		CustomerRemark: incoming.CustomerRemark,
		StaffRemark:    incoming.StaffRemark,
		RefundedAmount: incoming.RefundedAmount,
		Items:          items,
	}
	if incoming.CompletedTime != nil {
		t := *incoming.CompletedTime
		merged.CompletedTime = &t
	}

	completedNow := incoming.CompletedTime != nil &&
		(existing == nil || existing.CompletedTime == nil)
	return merged, completedNow, nil
}

// RefundSynchronizer 消费支付服务的退款实体变更事件，维护电商侧投影
type RefundSynchronizer struct {
	refunds   domain.RefundRepository
	payments  domain.PaymentRepository
	publisher port.RefundEventPublisher
	tracer    trace.Tracer
}

func NewRefundSynchronizer(
	refunds domain.RefundRepository,
	payments domain.PaymentRepository,
	publisher port.RefundEventPublisher,
	tracer trace.Tracer,
) *RefundSynchronizer {
	return &RefundSynchronizer{
		refunds:   refunds,
		payments:  payments,
		publisher: publisher,
		tracer:    tracer,
	}
}

// HandleRefundCreated 处理退款创建事件
// 已存在的记录直接跳过（重投递）；引用的支付单不存在时报错，等补齐后重试
func (s *RefundSynchronizer) HandleRefundCreated(ctx context.Context, event *domain.RefundCreatedEvent) error {
	ctx, span := s.tracer.Start(ctx, "payments.RefundCreated", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.String("refund.id", event.Entity.ID))

	existing, err := s.refunds.Find(ctx, event.Entity.TenantID, event.Entity.ID)
	if err != nil {
		return fmt.Errorf("find refund %s: %w", event.Entity.ID, err)
	}
	if existing != nil {
		logger.Ctx(ctx).Info().Str("refundId", existing.ID).Msg("refund already synchronized")
		return nil
	}

	payment, err := s.payments.Find(ctx, event.Entity.TenantID, event.Entity.PaymentID)
	if err != nil {
		return fmt.Errorf("find payment %s: %w", event.Entity.PaymentID, err)
	}
	if payment == nil {
		return fmt.Errorf("refund %s: %w", event.Entity.ID, domain.ErrPaymentNotFound)
	}

	merged, completedNow, err := MergeRefund(nil, &event.Entity)
	if err != nil {
		return err
	}

	if err := s.refunds.Insert(ctx, merged); err != nil {
		return fmt.Errorf("insert refund %s: %w", merged.ID, err)
	}

	s.publishCompletedIf(ctx, completedNow, merged)
	logger.Ctx(ctx).Info().Str("refundId", merged.ID).Msg("refund synchronized")
	return nil
}

// HandleRefundUpdated 处理退款更新事件
// 本地还没有投影时跳过，等创建事件先到
func (s *RefundSynchronizer) HandleRefundUpdated(ctx context.Context, event *domain.RefundUpdatedEvent) error {
	ctx, span := s.tracer.Start(ctx, "payments.RefundUpdated", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.String("refund.id", event.Entity.ID))

	existing, err := s.refunds.Find(ctx, event.Entity.TenantID, event.Entity.ID)
	if err != nil {
		return fmt.Errorf("find refund %s: %w", event.Entity.ID, err)
	}
	if existing == nil {
		logger.Ctx(ctx).Warn().Str("refundId", event.Entity.ID).
			Msg("refund update arrived before creation, skipping")
		return nil
	}

	merged, completedNow, err := MergeRefund(existing, &event.Entity)
	if err != nil {
		return err
	}

	if err := s.refunds.Update(ctx, merged); err != nil {
		return fmt.Errorf("update refund %s: %w", merged.ID, err)
	}

	s.publishCompletedIf(ctx, completedNow, merged)
	return nil
}

// HandleRefundDeleted 处理退款删除事件
func (s *RefundSynchronizer) HandleRefundDeleted(ctx context.Context, event *domain.RefundDeletedEvent) error {
	ctx, span := s.tracer.Start(ctx, "payments.RefundDeleted", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.String("refund.id", event.Entity.ID))

	existing, err := s.refunds.Find(ctx, event.Entity.TenantID, event.Entity.ID)
	if err != nil {
		return fmt.Errorf("find refund %s: %w", event.Entity.ID, err)
	}
	if existing == nil {
		return nil
	}

	if err := s.refunds.Delete(ctx, event.Entity.TenantID, event.Entity.ID); err != nil {
		return fmt.Errorf("delete refund %s: %w", event.Entity.ID, err)
	}
	logger.Ctx(ctx).Info().Str("refundId", event.Entity.ID).Msg("refund projection deleted")
	return nil
}

func (s *RefundSynchronizer) publishCompletedIf(ctx context.Context, completedNow bool, refund *domain.Refund) {
	if !completedNow {
		return
	}
	if err := s.publisher.PublishRefundCompleted(ctx, &domain.RefundCompletedEvent{Refund: refund}); err != nil {
		// 投影已落库，广播失败不回滚
		logger.Ctx(ctx).Warn().Err(err).
			Str("refundId", refund.ID).
			Msg("failed to publish refund completed event")
	}
}
