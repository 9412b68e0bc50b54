package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
)

type fakePlanRepo struct {
	plans map[string]*domain.FlashSalePlan
}

func (r *fakePlanRepo) Find(ctx context.Context, tenantID, id string) (*domain.FlashSalePlan, error) {
	plan, ok := r.plans[id]
	if !ok {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]string)}
}

func (s *fakeTokenStore) Put(ctx context.Context, planID, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[planID+"/"+userID] = token
	return nil
}

func (s *fakeTokenStore) Take(ctx context.Context, planID, userID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[planID+"/"+userID]
	if ok {
		delete(s.tokens, planID+"/"+userID)
	}
	return token, ok, nil
}

// fakeInventoryProvider 用互斥量模拟存储层的原子条件递减
type fakeInventoryProvider struct {
	mu       sync.Mutex
	stock    int64
	reserved int64
}

func (p *fakeInventoryProvider) TryReserve(ctx context.Context, tenantID, storeID, productID, skuID string, quantity int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stock < quantity {
		return false, nil
	}
	p.stock -= quantity
	p.reserved += quantity
	return true, nil
}

func (p *fakeInventoryProvider) TryRollBack(ctx context.Context, tenantID, storeID, productID, skuID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reserved <= 0 {
		return false, nil
	}
	p.reserved--
	p.stock++
	return true, nil
}

type capturingPublisher struct {
	fakePublisher
	mu           sync.Mutex
	resultEvents []*domain.CreateFlashSaleResultEvent
	resultErr    error
}

func (p *capturingPublisher) PublishCreateResult(ctx context.Context, event *domain.CreateFlashSaleResultEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resultErr != nil {
		return p.resultErr
	}
	p.resultEvents = append(p.resultEvents, event)
	return nil
}

func newPlanServiceForTest(stock int64, pub *capturingPublisher) (*PlanService, *fakeInventoryProvider, *fakeTokenStore) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	plans := &fakePlanRepo{plans: map[string]*domain.FlashSalePlan{
		"p1": {
			ID: "p1", TenantID: "t1", StoreID: "s1",
			ProductID: "prod-1", ProductSkuID: "sku-1",
			BeginTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour),
			TotalCount: stock, Published: true,
		},
		"p-over": {
			ID: "p-over", TenantID: "t1", StoreID: "s1",
			ProductID: "prod-2", ProductSkuID: "sku-2",
			BeginTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Hour),
			TotalCount: stock, Published: true,
		},
	}}
	tokens := newFakeTokenStore()
	provider := &fakeInventoryProvider{stock: stock}
	inventory := NewInventoryManager()
	inventory.Register(DefaultInventoryProviderName, provider)

	svc := NewPlanService(plans, tokens, inventory, pub, noop.NewTracerProvider().Tracer("test"))
	svc.now = func() time.Time { return now }
	return svc, provider, tokens
}

func TestPreOrder(t *testing.T) {
	svc, _, tokens := newPlanServiceForTest(10, &capturingPublisher{})

	token, err := svc.PreOrder(context.Background(), "t1", "u1", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	stored, ok, _ := tokens.Take(context.Background(), "p1", "u1")
	if !ok || stored != token {
		t.Errorf("token not stored: got (%q, %v)", stored, ok)
	}
}

func TestPreOrder_PlanNotInProgress(t *testing.T) {
	svc, _, _ := newPlanServiceForTest(10, &capturingPublisher{})

	if _, err := svc.PreOrder(context.Background(), "t1", "u1", "p-over"); !errors.Is(err, domain.ErrPlanNotInProgress) {
		t.Fatalf("expected ErrPlanNotInProgress, got %v", err)
	}
}

func TestOrder(t *testing.T) {
	pub := &capturingPublisher{}
	svc, provider, _ := newPlanServiceForTest(10, pub)
	ctx := context.Background()

	token, err := svc.PreOrder(ctx, "t1", "u1", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resultID, err := svc.Order(ctx, OrderInput{
		TenantID: "t1", UserID: "u1", PlanID: "p1", HashToken: token,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resultID == "" {
		t.Fatal("expected a result id")
	}

	if provider.stock != 9 {
		t.Errorf("expected stock 9 after reservation, got %d", provider.stock)
	}
	if len(pub.resultEvents) != 1 {
		t.Fatalf("expected 1 create-result event, got %d", len(pub.resultEvents))
	}
	event := pub.resultEvents[0]
	if event.ResultID != resultID {
		t.Errorf("event result id mismatch: %s vs %s", event.ResultID, resultID)
	}
	if event.Plan.ProductSkuID != "sku-1" || event.Plan.StoreID != "s1" {
		t.Errorf("plan snapshot fields wrong: %+v", event.Plan)
	}
	if event.ProductInventoryProviderName != DefaultInventoryProviderName {
		t.Errorf("unexpected provider name %s", event.ProductInventoryProviderName)
	}
}

func TestOrder_TokenSingleUse(t *testing.T) {
	pub := &capturingPublisher{}
	svc, _, _ := newPlanServiceForTest(10, pub)
	ctx := context.Background()

	token, _ := svc.PreOrder(ctx, "t1", "u1", "p1")
	if _, err := svc.Order(ctx, OrderInput{TenantID: "t1", UserID: "u1", PlanID: "p1", HashToken: token}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 同一令牌第二次使用必须被拒绝
	_, err := svc.Order(ctx, OrderInput{TenantID: "t1", UserID: "u1", PlanID: "p1", HashToken: token})
	if !errors.Is(err, domain.ErrInvalidPreOrderToken) {
		t.Fatalf("expected ErrInvalidPreOrderToken, got %v", err)
	}
}

func TestOrder_InsufficientInventory(t *testing.T) {
	pub := &capturingPublisher{}
	svc, _, _ := newPlanServiceForTest(0, pub)
	ctx := context.Background()

	token, _ := svc.PreOrder(ctx, "t1", "u1", "p1")
	_, err := svc.Order(ctx, OrderInput{TenantID: "t1", UserID: "u1", PlanID: "p1", HashToken: token})
	if !errors.Is(err, domain.ErrInsufficientInventory) {
		t.Fatalf("expected ErrInsufficientInventory, got %v", err)
	}
	if len(pub.resultEvents) != 0 {
		t.Error("no event may be published when inventory is insufficient")
	}
}

func TestOrder_PublishFailureRollsBackInventory(t *testing.T) {
	pub := &capturingPublisher{resultErr: errors.New("kafka down")}
	svc, provider, _ := newPlanServiceForTest(10, pub)
	ctx := context.Background()

	token, _ := svc.PreOrder(ctx, "t1", "u1", "p1")
	if _, err := svc.Order(ctx, OrderInput{TenantID: "t1", UserID: "u1", PlanID: "p1", HashToken: token}); err == nil {
		t.Fatal("expected publish failure to propagate")
	}

	if provider.stock != 10 {
		t.Errorf("expected inventory restored to 10, got %d", provider.stock)
	}
}

func TestOrder_UnknownProvider(t *testing.T) {
	pub := &capturingPublisher{}
	svc, _, _ := newPlanServiceForTest(10, pub)
	ctx := context.Background()

	token, _ := svc.PreOrder(ctx, "t1", "u1", "p1")
	_, err := svc.Order(ctx, OrderInput{
		TenantID: "t1", UserID: "u1", PlanID: "p1", HashToken: token,
		ProviderName: "NoSuchProvider",
	})
	if !errors.Is(err, domain.ErrInventoryProviderNotFound) {
		t.Fatalf("expected ErrInventoryProviderNotFound, got %v", err)
	}
}

// 100 个并发请求抢 10 个库存：恰好 10 个成功，其余报余量不足，最终余量为 0
func TestInventoryManager_ConcurrentReserve(t *testing.T) {
	provider := &fakeInventoryProvider{stock: 10}
	inventory := NewInventoryManager()
	inventory.Register(DefaultInventoryProviderName, provider)

	const attempts = 100
	var wg sync.WaitGroup
	var successes, rejections int64
	var mu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := inventory.TryReserve(context.Background(), "t1", DefaultInventoryProviderName,
				"s1", "prod-1", "sku-1", 1)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			if ok {
				successes++
			} else {
				rejections++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if successes != 10 {
		t.Errorf("expected exactly 10 successful reservations, got %d", successes)
	}
	if rejections != 90 {
		t.Errorf("expected 90 rejections, got %d", rejections)
	}
	if provider.stock != 0 {
		t.Errorf("expected final stock 0, got %d", provider.stock)
	}
}

// 回滚数量不能超过已预留数量
func TestInventoryManager_RollbackBounded(t *testing.T) {
	provider := &fakeInventoryProvider{stock: 1}
	inventory := NewInventoryManager()
	inventory.Register(DefaultInventoryProviderName, provider)
	ctx := context.Background()

	ok, _ := inventory.TryReserve(ctx, "t1", DefaultInventoryProviderName, "s1", "prod-1", "sku-1", 1)
	if !ok {
		t.Fatal("expected reservation to succeed")
	}

	if ok, _ := inventory.TryRollBackInventory(ctx, "t1", DefaultInventoryProviderName, "s1", "prod-1", "sku-1"); !ok {
		t.Error("first rollback must apply")
	}
	// 二次回滚没有可回的预留，必须软失败
	if ok, _ := inventory.TryRollBackInventory(ctx, "t1", DefaultInventoryProviderName, "s1", "prod-1", "sku-1"); ok {
		t.Error("second rollback must be rejected")
	}
	if provider.stock != 1 {
		t.Errorf("stock drifted above the pool: %d", provider.stock)
	}
}
