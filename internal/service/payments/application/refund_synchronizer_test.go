package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zhangzw218/EShop/internal/service/payments/domain"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func refundData(id string, completed *time.Time, items ...domain.RefundItemData) domain.RefundData {
	return domain.RefundData{
		ID:             id,
		TenantID:       "t1",
		PaymentID:      "payment-1",
		DisplayReason:  "customer request",
		RefundedAmount: 1000,
		CompletedTime:  completed,
		Items:          items,
	}
}

func itemData(id string) domain.RefundItemData {
	return domain.RefundItemData{
		ID:            id,
		PaymentItemID: "payment-item-" + id,
		StoreID:       strPtr("store-1"),
		OrderID:       strPtr("order-1"),
		Amount:        500,
		Quantity:      1,
	}
}

func TestMergeRefund_FirstSync(t *testing.T) {
	incoming := refundData("r1", nil, itemData("i1"), itemData("i2"))

	merged, completedNow, err := MergeRefund(nil, &incoming)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if completedNow {
		t.Fatal("refund without completed time must not report completion")
	}
	if len(merged.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(merged.Items))
	}
	if merged.Items[0].StoreID != "store-1" || merged.Items[0].OrderID != "order-1" {
		t.Fatalf("item fields not filled: %+v", merged.Items[0])
	}
}

func TestMergeRefund_ItemReconciliation(t *testing.T) {
	existing := &domain.Refund{
		ID:       "r1",
		TenantID: "t1",
		Items: []domain.RefundItem{
			{ID: "i1", StoreID: "store-1", OrderID: "order-1", Amount: 100},
			{ID: "gone", StoreID: "store-1", OrderID: "order-1", Amount: 999},
		},
	}

	updated := itemData("i1")
	updated.Amount = 700
	incoming := refundData("r1", nil, updated, itemData("i2"))

	merged, _, err := MergeRefund(existing, &incoming)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(merged.Items) != 2 {
		t.Fatalf("expected 2 items after reconciliation, got %d", len(merged.Items))
	}
	byID := map[string]domain.RefundItem{}
	for _, item := range merged.Items {
		byID[item.ID] = item
	}
	if _, ok := byID["gone"]; ok {
		t.Fatal("item absent from snapshot must be removed")
	}
	if byID["i1"].Amount != 700 {
		t.Fatalf("matching item not updated, amount=%d", byID["i1"].Amount)
	}
	if _, ok := byID["i2"]; !ok {
		t.Fatal("new item from snapshot must be added")
	}

	// 入参不能被改动
	if len(existing.Items) != 2 || existing.Items[1].ID != "gone" {
		t.Fatal("merge mutated the existing refund")
	}
}

func TestMergeRefund_CompletedTransitionFiresOnce(t *testing.T) {
	completed := timePtr(time.Now())

	incoming := refundData("r1", completed, itemData("i1"))
	merged, completedNow, err := MergeRefund(&domain.Refund{ID: "r1"}, &incoming)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !completedNow {
		t.Fatal("transition to completed must be reported")
	}

	// 已完成的投影再合并同一快照，不再报告
	_, completedAgain, err := MergeRefund(merged, &incoming)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if completedAgain {
		t.Fatal("already completed refund must not report completion again")
	}
}

func TestMergeRefund_MissingTypedFields(t *testing.T) {
	noStore := itemData("i1")
	noStore.StoreID = nil
	incoming := refundData("r1", nil, noStore)
	if _, _, err := MergeRefund(nil, &incoming); !errors.Is(err, domain.ErrStoreIDNotFound) {
		t.Fatalf("expected ErrStoreIDNotFound, got %v", err)
	}

	noOrder := itemData("i1")
	noOrder.OrderID = nil
	incoming = refundData("r1", nil, noOrder)
	if _, _, err := MergeRefund(nil, &incoming); !errors.Is(err, domain.ErrOrderIDNotFound) {
		t.Fatalf("expected ErrOrderIDNotFound, got %v", err)
	}
}

type fakeRefundRepo struct {
	mu      sync.Mutex
	refunds map[string]*domain.Refund
	inserts int
}

func newFakeRefundRepo() *fakeRefundRepo {
	return &fakeRefundRepo{refunds: make(map[string]*domain.Refund)}
}

func (r *fakeRefundRepo) Find(_ context.Context, _, id string) (*domain.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	refund, ok := r.refunds[id]
	if !ok {
		return nil, nil
	}
	cp := *refund
	return &cp, nil
}

func (r *fakeRefundRepo) Insert(_ context.Context, refund *domain.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *refund
	r.refunds[refund.ID] = &cp
	r.inserts++
	return nil
}

func (r *fakeRefundRepo) Update(_ context.Context, refund *domain.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *refund
	r.refunds[refund.ID] = &cp
	return nil
}

func (r *fakeRefundRepo) Delete(_ context.Context, _, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.refunds[id]; !ok {
		return domain.ErrRefundNotFound
	}
	delete(r.refunds, id)
	return nil
}

type fakePaymentRepo struct {
	payments map[string]*domain.Payment
}

func (r *fakePaymentRepo) Find(_ context.Context, _, id string) (*domain.Payment, error) {
	return r.payments[id], nil
}

type fakeRefundPublisher struct {
	mu        sync.Mutex
	completed []*domain.RefundCompletedEvent
}

func (p *fakeRefundPublisher) PublishRefundCompleted(_ context.Context, event *domain.RefundCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, event)
	return nil
}

func newTestSynchronizer(repo *fakeRefundRepo, payments *fakePaymentRepo, publisher *fakeRefundPublisher) *RefundSynchronizer {
	return NewRefundSynchronizer(repo, payments, publisher,
		noop.NewTracerProvider().Tracer("test"))
}

func TestHandleRefundCreated(t *testing.T) {
	repo := newFakeRefundRepo()
	payments := &fakePaymentRepo{payments: map[string]*domain.Payment{
		"payment-1": {ID: "payment-1", TenantID: "t1"},
	}}
	publisher := &fakeRefundPublisher{}
	syncer := newTestSynchronizer(repo, payments, publisher)

	ctx := context.Background()
	event := &domain.RefundCreatedEvent{Entity: refundData("r1", nil, itemData("i1"))}
	if err := syncer.HandleRefundCreated(ctx, event); err != nil {
		t.Fatalf("handle created: %v", err)
	}
	if repo.inserts != 1 {
		t.Fatalf("expected 1 insert, got %d", repo.inserts)
	}
	if len(publisher.completed) != 0 {
		t.Fatal("incomplete refund must not publish completion")
	}

	// 重投递不二次插入
	if err := syncer.HandleRefundCreated(ctx, event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if repo.inserts != 1 {
		t.Fatalf("redelivery caused another insert, got %d", repo.inserts)
	}
}

func TestHandleRefundCreated_UnknownPayment(t *testing.T) {
	repo := newFakeRefundRepo()
	payments := &fakePaymentRepo{payments: map[string]*domain.Payment{}}
	syncer := newTestSynchronizer(repo, payments, &fakeRefundPublisher{})

	event := &domain.RefundCreatedEvent{Entity: refundData("r1", nil, itemData("i1"))}
	err := syncer.HandleRefundCreated(context.Background(), event)
	if !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
	if repo.inserts != 0 {
		t.Fatal("refund must not be inserted without its payment")
	}
}

func TestHandleRefundUpdated_PublishesCompletionOnce(t *testing.T) {
	repo := newFakeRefundRepo()
	payments := &fakePaymentRepo{payments: map[string]*domain.Payment{
		"payment-1": {ID: "payment-1", TenantID: "t1"},
	}}
	publisher := &fakeRefundPublisher{}
	syncer := newTestSynchronizer(repo, payments, publisher)

	ctx := context.Background()
	created := &domain.RefundCreatedEvent{Entity: refundData("r1", nil, itemData("i1"))}
	if err := syncer.HandleRefundCreated(ctx, created); err != nil {
		t.Fatalf("handle created: %v", err)
	}

	updated := &domain.RefundUpdatedEvent{Entity: refundData("r1", timePtr(time.Now()), itemData("i1"))}
	if err := syncer.HandleRefundUpdated(ctx, updated); err != nil {
		t.Fatalf("handle updated: %v", err)
	}
	if len(publisher.completed) != 1 {
		t.Fatalf("expected 1 completion event, got %d", len(publisher.completed))
	}

	// 同一条更新重投递不重复广播
	if err := syncer.HandleRefundUpdated(ctx, updated); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(publisher.completed) != 1 {
		t.Fatalf("redelivery published completion again, got %d", len(publisher.completed))
	}
}

func TestHandleRefundUpdated_BeforeCreationIsSkipped(t *testing.T) {
	repo := newFakeRefundRepo()
	syncer := newTestSynchronizer(repo, &fakePaymentRepo{}, &fakeRefundPublisher{})

	updated := &domain.RefundUpdatedEvent{Entity: refundData("r1", nil, itemData("i1"))}
	if err := syncer.HandleRefundUpdated(context.Background(), updated); err != nil {
		t.Fatalf("update before creation should be skipped, got %v", err)
	}
}

func TestHandleRefundDeleted(t *testing.T) {
	repo := newFakeRefundRepo()
	payments := &fakePaymentRepo{payments: map[string]*domain.Payment{
		"payment-1": {ID: "payment-1", TenantID: "t1"},
	}}
	syncer := newTestSynchronizer(repo, payments, &fakeRefundPublisher{})

	ctx := context.Background()
	created := &domain.RefundCreatedEvent{Entity: refundData("r1", nil, itemData("i1"))}
	if err := syncer.HandleRefundCreated(ctx, created); err != nil {
		t.Fatalf("handle created: %v", err)
	}

	deleted := &domain.RefundDeletedEvent{Entity: refundData("r1", nil)}
	if err := syncer.HandleRefundDeleted(ctx, deleted); err != nil {
		t.Fatalf("handle deleted: %v", err)
	}
	if refund, _ := repo.Find(ctx, "t1", "r1"); refund != nil {
		t.Fatal("refund projection should be gone")
	}

	// 再删一次是无操作
	if err := syncer.HandleRefundDeleted(ctx, deleted); err != nil {
		t.Fatalf("redelivered delete: %v", err)
	}
}
