package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhangzw218/EShop/internal/pkg/logger"
	"github.com/zhangzw218/EShop/internal/pkg/metrics"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
)

// CreateResultHandler 是秒杀结果创建的编排器
//
// 多个消费实例并发处理 CreateFlashSaleResult 事件（至少一次投递），
// 同一 (plan, user) 的所有尝试由分布式锁串行化成一个全序。
// 临界区内先查重：已有非 Failed 记录的走重复路径（刷新缓存 + 入队补偿回滚），
// 首见的先发布建单事件、再落库结果——故意先发后存，落库失败重投递时
// 仍会判定为首见并可能二次发布，下游靠 ResultID 去重。
type CreateResultHandler struct {
	lock      port.DistributedLock
	repo      domain.FlashSaleResultRepository
	cache     port.CurrentResultCache
	outbox    port.OutboxStore
	publisher port.EventPublisher
	tracer    trace.Tracer

	// lockTimeout 是锁的最大等待时间，超时按并发冲突处理
	lockTimeout time.Duration
}

func NewCreateResultHandler(
	lock port.DistributedLock,
	repo domain.FlashSaleResultRepository,
	cache port.CurrentResultCache,
	outbox port.OutboxStore,
	publisher port.EventPublisher,
	tracer trace.Tracer,
	lockTimeout time.Duration,
) *CreateResultHandler {
	return &CreateResultHandler{
		lock:        lock,
		repo:        repo,
		cache:       cache,
		outbox:      outbox,
		publisher:   publisher,
		tracer:      tracer,
		lockTimeout: lockTimeout,
	}
}

// lockKeyOf 计算 (plan, user) 的锁键
func lockKeyOf(event *domain.CreateFlashSaleResultEvent) string {
	return fmt.Sprintf("eshopflashsales-creating-result_%s-%s", event.Plan.ID, event.UserID)
}

// Handle 处理一条入站的结果创建事件
// 致命错误（锁超时、仓储、发布失败）原样上抛，交给总线的重投递策略；
// 补偿回滚入队失败只告警，不中断
func (h *CreateResultHandler) Handle(ctx context.Context, event *domain.CreateFlashSaleResultEvent) error {
	ctx, span := h.tracer.Start(ctx, "flashsale.CreateResult", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	span.SetAttributes(
		attribute.String("flashsale.plan.id", event.Plan.ID),
		attribute.String("flashsale.result.id", event.ResultID),
		attribute.String("user.id", event.UserID),
	)

	handle, err := h.lock.TryAcquire(ctx, lockKeyOf(event), h.lockTimeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock acquisition failed")
		metrics.ResultEventsHandled.WithLabelValues("error").Inc()
		return fmt.Errorf("acquire result creation lock: %w", err)
	}
	if handle == nil {
		// 没拿到锁就立刻失败，此时还没有任何副作用
		span.SetStatus(codes.Error, "concurrent result creation")
		metrics.LockConflicts.Inc()
		metrics.ResultEventsHandled.WithLabelValues("conflict").Inc()
		return domain.ErrConcurrentResultCreation
	}
	defer func() {
		if err := handle.Release(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).
				Str("planId", event.Plan.ID).
				Str("userId", event.UserID).
				Msg("failed to release result creation lock")
		}
	}()

	ongoing, err := h.repo.FindOngoing(ctx, event.TenantID, event.Plan.ID, event.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ongoing result lookup failed")
		metrics.ResultEventsHandled.WithLabelValues("error").Inc()
		return fmt.Errorf("find ongoing result: %w", err)
	}

	if ongoing != nil {
		return h.handleDuplicate(ctx, span, event, ongoing)
	}

	return h.handleFirstSeen(ctx, span, event)
}

// handleDuplicate 处理重投递或竞争失败的一侧
// 缓存写的是胜者的快照，绝不能用败者的尝试覆盖；
// 本次（败者）预留的库存通过 outbox 延后回补，不触碰胜者的预留
func (h *CreateResultHandler) handleDuplicate(ctx context.Context, span trace.Span,
	event *domain.CreateFlashSaleResultEvent, winner *domain.FlashSaleResult) error {

	logger.Ctx(ctx).Warn().
		Str("planId", event.Plan.ID).
		Str("userId", event.UserID).
		Str("winningResultId", winner.ID).
		Str("losingResultId", event.ResultID).
		Msg("duplicate ongoing flash sale result creation")
	span.AddEvent("duplicate attempt, keeping winning result")

	if err := h.cache.Set(ctx, event.Plan.ID, event.UserID, &port.CurrentResultCacheItem{
		TenantID: winner.TenantID,
		Result:   winner,
	}); err != nil {
		// 缓存是尽力而为层，写失败不影响结果正确性
		logger.Ctx(ctx).Warn().Err(err).
			Str("planId", event.Plan.ID).
			Str("userId", event.UserID).
			Msg("failed to refresh current result cache")
	}

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
		// 回滚失败是可接受并受监控的库存漂移，不升级
		logger.Ctx(ctx).Warn().Err(err).
			Str("resultId", event.ResultID).
			Msg("failed to enqueue inventory rollback task")
	}

	metrics.ResultEventsHandled.WithLabelValues("duplicate").Inc()
	// 不创建新结果，也不发布建单事件
	return nil
}

// handleFirstSeen 处理首次见到的尝试
func (h *CreateResultHandler) handleFirstSeen(ctx context.Context, span trace.Span,
	event *domain.CreateFlashSaleResultEvent) error {

	result := domain.NewFlashSaleResult(
		event.ResultID, // 由发起方指定，不在这里生成
		event.TenantID,
		event.Plan.StoreID,
		event.Plan.ID,
		event.UserID,
		event.ReducedInventoryTime,
	)

	orderEvent := &domain.CreateFlashSaleOrderEvent{
		TenantID:       event.TenantID,
		ResultID:       event.ResultID,
		UserID:         event.UserID,
		CustomerRemark: event.CustomerRemark,
		Plan:           event.Plan,
		HashToken:      event.HashToken,
	}

	// 先发布、后落库：见类型注释
	if err := h.publisher.PublishCreateOrder(ctx, orderEvent); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish create order failed")
		metrics.ResultEventsHandled.WithLabelValues("error").Inc()
		return fmt.Errorf("publish create flash sale order: %w", err)
	}

	if err := h.repo.Insert(ctx, result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert result failed")
		metrics.ResultEventsHandled.WithLabelValues("error").Inc()
		return fmt.Errorf("insert flash sale result: %w", err)
	}

	logger.Ctx(ctx).Info().
		Str("resultId", result.ID).
		Str("planId", result.PlanID).
		Str("userId", result.UserID).
		Msg("flash sale result created")
	span.AddEvent("result created and order event published")
	metrics.ResultEventsHandled.WithLabelValues("created").Inc()
	return nil
}
