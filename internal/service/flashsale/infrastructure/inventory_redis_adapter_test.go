package infrastructure

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zhangzw218/EShop/internal/pkg/redis"
)

// 需要本地 Redis，连不上就跳过
func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := redis.NewClient(ctx, "127.0.0.1:6379", "", 0)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisInventoryProvider_ReserveAndRollback(t *testing.T) {
	client := newTestRedisClient(t)
	provider, err := NewRedisInventoryProvider(client)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	ctx := context.Background()
	skuID := uuid.NewString()
	if err := provider.SetStock(ctx, "t1", "store-1", "prod-1", skuID, 2); err != nil {
		t.Fatalf("set stock: %v", err)
	}

	for i := 0; i < 2; i++ {
		ok, err := provider.TryReserve(ctx, "t1", "store-1", "prod-1", skuID, 1)
		if err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("reserve %d rejected with stock remaining", i)
		}
	}

	ok, err := provider.TryReserve(ctx, "t1", "store-1", "prod-1", skuID, 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if ok {
		t.Fatal("reserve succeeded with zero stock")
	}

	// 回滚受已占用量约束：归还两件后第三次必须被拒绝
	for i := 0; i < 2; i++ {
		ok, err := provider.TryRollBack(ctx, "t1", "store-1", "prod-1", skuID)
		if err != nil {
			t.Fatalf("rollback %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("rollback %d rejected with reservations remaining", i)
		}
	}
	ok, err = provider.TryRollBack(ctx, "t1", "store-1", "prod-1", skuID)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if ok {
		t.Fatal("rollback succeeded with nothing reserved")
	}

	// 库存回到初始值
	ok, err = provider.TryReserve(ctx, "t1", "store-1", "prod-1", skuID, 2)
	if err != nil {
		t.Fatalf("reserve after rollback: %v", err)
	}
	if !ok {
		t.Fatal("stock was not fully restored by rollbacks")
	}
}

func TestRedisInventoryProvider_ConcurrentReserve(t *testing.T) {
	client := newTestRedisClient(t)
	provider, err := NewRedisInventoryProvider(client)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	ctx := context.Background()
	skuID := uuid.NewString()
	const stock = 10
	const attempts = 100
	if err := provider.SetStock(ctx, "t1", "store-1", "prod-1", skuID, stock); err != nil {
		t.Fatalf("set stock: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := provider.TryReserve(ctx, "t1", "store-1", "prod-1", skuID, 1)
			if err != nil {
				t.Errorf("reserve: %v", err)
				return
			}
			if ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != stock {
		t.Fatalf("expected exactly %d successful reservations, got %d", stock, succeeded)
	}
}
