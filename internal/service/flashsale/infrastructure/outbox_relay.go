package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zhangzw218/EShop/internal/pkg/logger"
	"github.com/zhangzw218/EShop/internal/pkg/metrics"
	"github.com/zhangzw218/EShop/internal/service/flashsale/application"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
)

// OutboxRelay 轮询补偿任务表并执行库存回滚
//
// 它在触发任务的那笔事务之外、用自己的上下文运行，所以必须基于
// 当前存储状态重新判定（TryRollBackInventory 自带这层保护），
// 不能假设入队时刻的视图仍然有效。
// 重试预算耗尽后任务标记为 dead，只留告警——回滚失败是可接受并
// 受监控的库存漂移，不是结果不变量的破坏。
type OutboxRelay struct {
	store     port.OutboxStore
	inventory *application.InventoryManager

	pollInterval time.Duration
	maxRetries   int
	batchSize    int
}

func NewOutboxRelay(store port.OutboxStore, inventory *application.InventoryManager,
	pollInterval time.Duration, maxRetries, batchSize int) *OutboxRelay {
	return &OutboxRelay{
		store:        store,
		inventory:    inventory,
		pollInterval: pollInterval,
		maxRetries:   maxRetries,
		batchSize:    batchSize,
	}
}

// Run 阻塞运行直到 ctx 取消
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	logger.Ctx(ctx).Info().
		Dur("pollInterval", r.pollInterval).
		Msg("outbox relay started")

	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("outbox relay shutting down")
			return nil
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("outbox drain failed")
			}
		}
	}
}

// Drain 处理一批待执行任务，单测直接调用它
func (r *OutboxRelay) Drain(ctx context.Context) error {
	tasks, err := r.store.FetchPending(ctx, r.batchSize)
	if err != nil {
		return fmt.Errorf("fetch pending outbox tasks: %w", err)
	}

	for _, task := range tasks {
		r.process(ctx, task)
	}
	return nil
}

func (r *OutboxRelay) process(ctx context.Context, task *port.OutboxTask) {
	var err error
	switch task.Kind {
	case port.OutboxTaskKindInventoryRollback:
		err = r.rollBackInventory(ctx, task)
	default:
		// 未知类型直接出队，留日志排查
		logger.Ctx(ctx).Error().
			Str("taskId", task.ID).
			Str("kind", task.Kind).
			Msg("unknown outbox task kind")
		err = nil
	}

	if err == nil {
		if markErr := r.store.MarkDone(ctx, task.ID); markErr != nil {
			logger.Ctx(ctx).Warn().Err(markErr).Str("taskId", task.ID).Msg("failed to mark outbox task done")
		}
		metrics.OutboxTasksRelayed.WithLabelValues("done").Inc()
		return
	}

	if task.Retries+1 >= r.maxRetries {
		logger.Ctx(ctx).Warn().Err(err).
			Str("taskId", task.ID).
			Int("retries", task.Retries+1).
			Msg("outbox task retries exhausted, giving up")
		if markErr := r.store.MarkDead(ctx, task.ID, err.Error()); markErr != nil {
			logger.Ctx(ctx).Warn().Err(markErr).Str("taskId", task.ID).Msg("failed to mark outbox task dead")
		}
		metrics.OutboxTasksRelayed.WithLabelValues("dead").Inc()
		return
	}

	if markErr := r.store.MarkRetry(ctx, task.ID, err.Error()); markErr != nil {
		logger.Ctx(ctx).Warn().Err(markErr).Str("taskId", task.ID).Msg("failed to mark outbox task for retry")
	}
	metrics.OutboxTasksRelayed.WithLabelValues("retried").Inc()
}

func (r *OutboxRelay) rollBackInventory(ctx context.Context, task *port.OutboxTask) error {
	var payload port.InventoryRollbackPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		// 载荷坏了重试也没用，按软失败出队
		logger.Ctx(ctx).Error().Err(err).Str("taskId", task.ID).Msg("corrupt rollback payload")
		return nil
	}

	applied, err := r.inventory.TryRollBackInventory(ctx, payload.TenantID, payload.ProviderName,
		payload.StoreID, payload.ProductID, payload.SkuID)
	if err != nil {
		metrics.InventoryRollbacks.WithLabelValues("error").Inc()
		return fmt.Errorf("roll back inventory for result %s: %w", payload.ResultID, err)
	}
	if !applied {
		// 无可回滚（已回过或记录缺失）是软失败，不再重试
		logger.Ctx(ctx).Warn().
			Str("resultId", payload.ResultID).
			Str("skuId", payload.SkuID).
			Msg("inventory rollback rejected, nothing to restore")
		metrics.InventoryRollbacks.WithLabelValues("rejected").Inc()
		return nil
	}

	logger.Ctx(ctx).Info().
		Str("resultId", payload.ResultID).
		Str("skuId", payload.SkuID).
		Msg("inventory rolled back")
	metrics.InventoryRollbacks.WithLabelValues("applied").Inc()
	return nil
}
