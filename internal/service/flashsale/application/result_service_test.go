package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
)

func TestResultService_Get(t *testing.T) {
	repo := newFakeResultRepo()
	seedResult(repo, "r1")
	svc := NewResultService(repo, newFakeCache())

	dto, err := svc.Get(context.Background(), "t1", "u1", "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dto.ID != "r1" || dto.Status != string(domain.ResultStatusPending) {
		t.Errorf("unexpected dto: %+v", dto)
	}

	// 其他用户不能读别人的结果
	if _, err := svc.Get(context.Background(), "t1", "u2", "r1"); !errors.Is(err, domain.ErrNotResultOwner) {
		t.Fatalf("expected ErrNotResultOwner, got %v", err)
	}

	if _, err := svc.Get(context.Background(), "t1", "u1", "missing"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}
}

func TestResultService_GetCurrent_CacheHit(t *testing.T) {
	repo := newFakeResultRepo()
	cache := newFakeCache()
	svc := NewResultService(repo, cache)

	cached := domain.NewFlashSaleResult("r-cached", "t1", "s1", "p1", "u1", time.Now())
	_ = cache.Set(context.Background(), "p1", "u1", &port.CurrentResultCacheItem{
		TenantID: "t1", Result: cached,
	})

	dto, err := svc.GetCurrent(context.Background(), "t1", "p1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dto.ID != "r-cached" {
		t.Errorf("expected cache hit, got %s", dto.ID)
	}
}

func TestResultService_GetCurrent_FallbackWarmsCache(t *testing.T) {
	repo := newFakeResultRepo()
	cache := newFakeCache()
	seedResult(repo, "r1")
	svc := NewResultService(repo, cache)

	dto, err := svc.GetCurrent(context.Background(), "t1", "p1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dto.ID != "r1" {
		t.Errorf("expected fallback result r1, got %s", dto.ID)
	}

	// 回填后缓存可命中
	item, ok, _ := cache.Get(context.Background(), "p1", "u1")
	if !ok || item.Result.ID != "r1" {
		t.Error("repository fallback must warm the cache")
	}
}

func TestResultService_GetCurrent_NotFound(t *testing.T) {
	svc := NewResultService(newFakeResultRepo(), newFakeCache())

	if _, err := svc.GetCurrent(context.Background(), "t1", "p1", "u1"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}
}
