package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhangzw218/EShop/internal/pkg/logger"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
)

// DefaultInventoryProviderName 是未显式指定时使用的库存提供者
const DefaultInventoryProviderName = "FlashSalesRedis"

// PlanService 承载抢购入口：预下单换令牌，正式下单预留库存并发事件
type PlanService struct {
	plans     domain.FlashSalePlanRepository
	tokens    port.PreOrderTokenStore
	inventory *InventoryManager
	publisher port.EventPublisher
	tracer    trace.Tracer

	now func() time.Time
}

func NewPlanService(
	plans domain.FlashSalePlanRepository,
	tokens port.PreOrderTokenStore,
	inventory *InventoryManager,
	publisher port.EventPublisher,
	tracer trace.Tracer,
) *PlanService {
	return &PlanService{
		plans:     plans,
		tokens:    tokens,
		inventory: inventory,
		publisher: publisher,
		tracer:    tracer,
		now:       time.Now,
	}
}

// PreOrder 校验活动时间窗并签发一次性令牌
// 令牌把“看页面”的流量挡在真正的扣库存之前
func (s *PlanService) PreOrder(ctx context.Context, tenantID, userID, planID string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "flashsale.PreOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("flashsale.plan.id", planID),
		attribute.String("user.id", userID),
	)

	plan, err := s.plans.Find(ctx, tenantID, planID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if !plan.IsInProgress(s.now()) {
		span.SetStatus(codes.Error, "plan not in progress")
		return "", domain.ErrPlanNotInProgress
	}

	token := uuid.New().String()
	if err := s.tokens.Put(ctx, planID, userID, token); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("store pre-order token: %w", err)
	}

	return token, nil
}

// OrderInput 是正式下单的入参
type OrderInput struct {
	TenantID       string
	UserID         string
	PlanID         string
	HashToken      string
	CustomerRemark string
	// ProviderName 为空时使用默认库存提供者
	ProviderName string
}

// Order 消费令牌、预留一个单位库存，成功后发布 CreateFlashSaleResult 事件
// ResultID 在这里一次性生成，之后整条链路都以它做幂等键
func (s *PlanService) Order(ctx context.Context, input OrderInput) (string, error) {
	ctx, span := s.tracer.Start(ctx, "flashsale.Order")
	defer span.End()
	span.SetAttributes(
		attribute.String("flashsale.plan.id", input.PlanID),
		attribute.String("user.id", input.UserID),
	)

	plan, err := s.plans.Find(ctx, input.TenantID, input.PlanID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if !plan.IsInProgress(s.now()) {
		span.SetStatus(codes.Error, "plan not in progress")
		return "", domain.ErrPlanNotInProgress
	}

	stored, ok, err := s.tokens.Take(ctx, input.PlanID, input.UserID)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("take pre-order token: %w", err)
	}
	if !ok || stored != input.HashToken {
		span.SetStatus(codes.Error, "invalid pre-order token")
		return "", domain.ErrInvalidPreOrderToken
	}

	providerName := input.ProviderName
	if providerName == "" {
		providerName = DefaultInventoryProviderName
	}

	reserved, err := s.inventory.TryReserve(ctx, input.TenantID, providerName,
		plan.StoreID, plan.ProductID, plan.ProductSkuID, 1)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("reserve inventory: %w", err)
	}
	if !reserved {
		// 售罄是预期的业务结果，不是系统故障
		span.AddEvent("insufficient inventory")
		return "", domain.ErrInsufficientInventory
	}

	resultID := uuid.New().String()
	event := &domain.CreateFlashSaleResultEvent{
		TenantID:       input.TenantID,
		ResultID:       resultID,
		UserID:         input.UserID,
		CustomerRemark: input.CustomerRemark,
		Plan: domain.PlanSnapshot{
			ID:           plan.ID,
			StoreID:      plan.StoreID,
			ProductID:    plan.ProductID,
			ProductSkuID: plan.ProductSkuID,
		},
		HashToken:                    input.HashToken,
		ReducedInventoryTime:         s.now(),
		ProductInventoryProviderName: providerName,
	}

	if err := s.publisher.PublishCreateResult(ctx, event); err != nil {
		// 事件发不出去时立即回补刚预留的单位，避免库存被悄悄吃掉
		span.RecordError(err)
		if ok, rbErr := s.inventory.TryRollBackInventory(ctx, input.TenantID, providerName,
			plan.StoreID, plan.ProductID, plan.ProductSkuID); rbErr != nil || !ok {
			logger.Ctx(ctx).Warn().Err(rbErr).
				Str("planId", plan.ID).
				Str("userId", input.UserID).
				Msg("failed to roll back inventory after publish failure")
		}
		return "", fmt.Errorf("publish create flash sale result: %w", err)
	}

	logger.Ctx(ctx).Info().
		Str("resultId", resultID).
		Str("planId", plan.ID).
		Str("userId", input.UserID).
		Msg("flash sale order accepted")
	return resultID, nil
}
