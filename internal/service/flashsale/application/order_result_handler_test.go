package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
)

type fakeNotifier struct {
	mu       sync.Mutex
	notified []string
}

func (n *fakeNotifier) NotifyResult(ctx context.Context, userID string, result *domain.FlashSaleResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, userID+":"+result.ID)
}

type completedPublisher struct {
	fakePublisher
	mu        sync.Mutex
	completed []*domain.FlashSaleResultCompletedEvent
}

func (p *completedPublisher) PublishResultCompleted(ctx context.Context, event *domain.FlashSaleResultCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, event)
	return nil
}

func seedResult(repo *fakeResultRepo, id string) *domain.FlashSaleResult {
	result := domain.NewFlashSaleResult(id, "t1", "s1", "p1", "u1", time.Now())
	_ = repo.Insert(context.Background(), result)
	repo.inserts = 0
	return result
}

func orderCreatedEvent(resultID, orderID string) *domain.FlashSaleOrderCreatedEvent {
	return &domain.FlashSaleOrderCreatedEvent{
		TenantID: "t1",
		ResultID: resultID,
		OrderID:  orderID,
		UserID:   "u1",
		Plan: domain.PlanSnapshot{
			ID: "p1", StoreID: "s1", ProductID: "prod-1", ProductSkuID: "sku-1",
		},
		ProductInventoryProviderName: DefaultInventoryProviderName,
	}
}

func TestHandleOrderCreated(t *testing.T) {
	repo := newFakeResultRepo()
	cache := newFakeCache()
	pub := &completedPublisher{}
	notifier := &fakeNotifier{}
	seedResult(repo, "r1")

	h := NewOrderResultHandler(repo, cache, &fakeOutbox{}, pub, notifier,
		noop.NewTracerProvider().Tracer("test"))

	if err := h.HandleOrderCreated(context.Background(), orderCreatedEvent("r1", "o1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := repo.results["r1"]
	if got.Status != domain.ResultStatusSucceeded {
		t.Errorf("expected Succeeded, got %s", got.Status)
	}
	if got.OrderID != "o1" {
		t.Errorf("expected order id o1, got %s", got.OrderID)
	}
	if len(pub.completed) != 1 || pub.completed[0].OrderID != "o1" {
		t.Errorf("expected 1 completed event carrying the order id, got %+v", pub.completed)
	}
	item, ok, _ := cache.Get(context.Background(), "p1", "u1")
	if !ok || item.Result.Status != domain.ResultStatusSucceeded {
		t.Error("cache must reflect the terminal state")
	}
	if len(notifier.notified) != 1 || notifier.notified[0] != "u1:r1" {
		t.Errorf("expected push notification for u1:r1, got %v", notifier.notified)
	}
}

func TestHandleOrderCreated_Redelivery(t *testing.T) {
	repo := newFakeResultRepo()
	pub := &completedPublisher{}
	seedResult(repo, "r1")

	h := NewOrderResultHandler(repo, newFakeCache(), &fakeOutbox{}, pub, nil,
		noop.NewTracerProvider().Tracer("test"))

	event := orderCreatedEvent("r1", "o1")
	if err := h.HandleOrderCreated(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.HandleOrderCreated(context.Background(), event); err != nil {
		t.Fatalf("redelivery must be a no-op: %v", err)
	}

	if len(pub.completed) != 1 {
		t.Errorf("redelivery must not publish a second completed event, got %d", len(pub.completed))
	}
}

func TestHandleOrderCreated_ResultMissing(t *testing.T) {
	h := NewOrderResultHandler(newFakeResultRepo(), newFakeCache(), &fakeOutbox{},
		&completedPublisher{}, nil, noop.NewTracerProvider().Tracer("test"))

	err := h.HandleOrderCreated(context.Background(), orderCreatedEvent("missing", "o1"))
	if !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}
}

func TestHandleOrderCreationFailed(t *testing.T) {
	repo := newFakeResultRepo()
	cache := newFakeCache()
	outbox := &fakeOutbox{}
	notifier := &fakeNotifier{}
	seedResult(repo, "r1")

	h := NewOrderResultHandler(repo, cache, outbox, &completedPublisher{}, notifier,
		noop.NewTracerProvider().Tracer("test"))

	event := &domain.FlashSaleOrderCreationFailedEvent{
		TenantID: "t1",
		ResultID: "r1",
		UserID:   "u1",
		Plan: domain.PlanSnapshot{
			ID: "p1", StoreID: "s1", ProductID: "prod-1", ProductSkuID: "sku-1",
		},
		Reason:                       "payment rejected",
		ProductInventoryProviderName: DefaultInventoryProviderName,
	}
	if err := h.HandleOrderCreationFailed(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := repo.results["r1"]; got.Status != domain.ResultStatusFailed {
		t.Errorf("expected Failed, got %s", got.Status)
	}

	// 失败路径要排一个库存回补任务
	if len(outbox.tasks) != 1 {
		t.Fatalf("expected 1 rollback task, got %d", len(outbox.tasks))
	}
	var payload port.InventoryRollbackPayload
	if err := json.Unmarshal(outbox.tasks[0].Payload, &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if payload.ResultID != "r1" || payload.SkuID != "sku-1" {
		t.Errorf("rollback payload wrong: %+v", payload)
	}

	// Failed 之后 (plan, user) 名额释放，新的尝试可以创建结果
	ongoing, err := repo.FindOngoing(context.Background(), "t1", "p1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ongoing != nil {
		t.Error("failed result must not hold the (plan, user) slot")
	}

	// 重复失败事件不再追加任务
	if err := h.HandleOrderCreationFailed(context.Background(), event); err != nil {
		t.Fatalf("redelivery must be a no-op: %v", err)
	}
	if len(outbox.tasks) != 1 {
		t.Errorf("redelivered failure must not enqueue another rollback, got %d", len(outbox.tasks))
	}
}
