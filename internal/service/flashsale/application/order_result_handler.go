package application

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhangzw218/EShop/internal/pkg/logger"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
)

// OrderResultHandler 消费下游订单管道回报的结局，把结果推进到终态
// 订单建好 -> Succeeded + 挂上 OrderID；订单失败 -> Failed + 回补库存
type OrderResultHandler struct {
	repo      domain.FlashSaleResultRepository
	cache     port.CurrentResultCache
	outbox    port.OutboxStore
	publisher port.EventPublisher
	notifier  port.ResultNotifier
	tracer    trace.Tracer
}

func NewOrderResultHandler(
	repo domain.FlashSaleResultRepository,
	cache port.CurrentResultCache,
	outbox port.OutboxStore,
	publisher port.EventPublisher,
	notifier port.ResultNotifier,
	tracer trace.Tracer,
) *OrderResultHandler {
	return &OrderResultHandler{
		repo:      repo,
		cache:     cache,
		outbox:    outbox,
		publisher: publisher,
		notifier:  notifier,
		tracer:    tracer,
	}
}

// HandleOrderCreated 处理订单创建成功事件
// 重投递安全：已经是 Succeeded 的记录直接跳过
func (h *OrderResultHandler) HandleOrderCreated(ctx context.Context, event *domain.FlashSaleOrderCreatedEvent) error {
	ctx, span := h.tracer.Start(ctx, "flashsale.OrderCreated", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("flashsale.result.id", event.ResultID),
		attribute.String("order.id", event.OrderID),
	)

	result, err := h.repo.Find(ctx, event.TenantID, event.ResultID)
	if err != nil {
		return fmt.Errorf("find result %s: %w", event.ResultID, err)
	}

	if result.Status == domain.ResultStatusSucceeded {
		logger.Ctx(ctx).Info().
			Str("resultId", result.ID).
			Msg("order created event redelivered, result already succeeded")
		return nil
	}

	result.MarkSucceeded(event.OrderID)
	if err := h.repo.Update(ctx, result); err != nil {
		return fmt.Errorf("update result %s: %w", result.ID, err)
	}

	h.refreshCache(ctx, result)

	if err := h.publisher.PublishResultCompleted(ctx, &domain.FlashSaleResultCompletedEvent{
		TenantID: result.TenantID,
		ResultID: result.ID,
		PlanID:   result.PlanID,
		UserID:   result.UserID,
		OrderID:  result.OrderID,
	}); err != nil {
		// 结果已经落库，广播失败不回滚状态
		logger.Ctx(ctx).Warn().Err(err).
			Str("resultId", result.ID).
			Msg("failed to publish result completed event")
	}

	if h.notifier != nil {
		h.notifier.NotifyResult(ctx, result.UserID, result)
	}

	logger.Ctx(ctx).Info().
		Str("resultId", result.ID).
		Str("orderId", result.OrderID).
		Msg("flash sale result succeeded")
	return nil
}

// HandleOrderCreationFailed 处理订单创建失败事件
// 结果置为 Failed（腾出 (plan, user) 名额），库存通过 outbox 回补
func (h *OrderResultHandler) HandleOrderCreationFailed(ctx context.Context, event *domain.FlashSaleOrderCreationFailedEvent) error {
	ctx, span := h.tracer.Start(ctx, "flashsale.OrderCreationFailed", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.String("flashsale.result.id", event.ResultID))

	result, err := h.repo.Find(ctx, event.TenantID, event.ResultID)
	if err != nil {
		return fmt.Errorf("find result %s: %w", event.ResultID, err)
	}

	if result.Status == domain.ResultStatusFailed {
		return nil
	}

	result.MarkFailed()
	if err := h.repo.Update(ctx, result); err != nil {
		return fmt.Errorf("update result %s: %w", result.ID, err)
	}

	h.refreshCache(ctx, result)

	payload, err := json.Marshal(&port.InventoryRollbackPayload{
		TenantID:     event.TenantID,
		ProviderName: event.ProductInventoryProviderName,
		StoreID:      event.Plan.StoreID,
		ProductID:    event.Plan.ProductID,
		SkuID:        event.Plan.ProductSkuID,
		ResultID:     event.ResultID,
	})
	if err != nil {
		return fmt.Errorf("marshal rollback payload: %w", err)
	}
	if err := h.outbox.Enqueue(ctx, &port.OutboxTask{
		Kind:    port.OutboxTaskKindInventoryRollback,
		Payload: payload,
		Status:  port.OutboxTaskStatusPending,
	}); err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("resultId", event.ResultID).
			Msg("failed to enqueue inventory rollback task")
	}

	if h.notifier != nil {
		h.notifier.NotifyResult(ctx, result.UserID, result)
	}

	logger.Ctx(ctx).Warn().
		Str("resultId", result.ID).
		Str("reason", event.Reason).
		Msg("flash sale result failed, order creation did not complete")
	return nil
}

func (h *OrderResultHandler) refreshCache(ctx context.Context, result *domain.FlashSaleResult) {
	if err := h.cache.Set(ctx, result.PlanID, result.UserID, &port.CurrentResultCacheItem{
		TenantID: result.TenantID,
		Result:   result,
	}); err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("resultId", result.ID).
			Msg("failed to refresh current result cache")
	}
}
