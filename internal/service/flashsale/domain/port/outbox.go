package port

import (
	"context"
	"encoding/json"
	"time"
)

// OutboxTaskStatus 是补偿任务的状态
type OutboxTaskStatus string

const (
	OutboxTaskStatusPending OutboxTaskStatus = "pending"
	OutboxTaskStatusDone    OutboxTaskStatus = "done"
	// OutboxTaskStatusDead 表示重试耗尽后被放弃的任务，只留告警日志
	OutboxTaskStatusDead OutboxTaskStatus = "dead"
)

// OutboxTaskKindInventoryRollback 是目前唯一的任务类型
const OutboxTaskKindInventoryRollback = "inventory-rollback"

// OutboxTask 是一条事务外执行的补偿任务
// 原实现把回滚挂在工作单元的提交回调上，这里改为显式的 outbox 表：
// 任务有自己的重试预算，生命周期与触发它的事务解耦
type OutboxTask struct {
	ID        string
	Kind      string
	Payload   json.RawMessage
	Status    OutboxTaskStatus
	Retries   int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InventoryRollbackPayload 是库存回滚任务的载荷
type InventoryRollbackPayload struct {
	TenantID     string `json:"tenantId"`
	ProviderName string `json:"providerName"`
	StoreID      string `json:"storeId"`
	ProductID    string `json:"productId"`
	SkuID        string `json:"skuId"`
	// ResultID 记录触发回滚的那次尝试，便于排查
	ResultID string `json:"resultId"`
}

// OutboxStore 是补偿任务队列的持久化端口
type OutboxStore interface {
	Enqueue(ctx context.Context, task *OutboxTask) error

	// FetchPending 取一批待执行任务，按创建时间先入先出
	FetchPending(ctx context.Context, limit int) ([]*OutboxTask, error)

	MarkDone(ctx context.Context, id string) error

	// MarkRetry 记录一次失败，由中继 worker 决定何时再取
	MarkRetry(ctx context.Context, id string, lastError string) error

	// MarkDead 重试耗尽，任务出队
	MarkDead(ctx context.Context, id string, lastError string) error
}
