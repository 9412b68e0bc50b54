package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/zhangzw218/EShop/internal/service/flashsale/application"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
)

// FlashSaleHandler 封装秒杀服务的 HTTP 处理器
type FlashSaleHandler struct {
	plans   *application.PlanService
	results *application.ResultService
}

func NewFlashSaleHandler(plans *application.PlanService, results *application.ResultService) *FlashSaleHandler {
	return &FlashSaleHandler{plans: plans, results: results}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *FlashSaleHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/flash-sale/pre-order", h.handlePreOrder)
	mux.HandleFunc("/flash-sale/order", h.handleOrder)
	mux.HandleFunc("/flash-sale/current-result", h.handleCurrentResult)
	mux.HandleFunc("/flash-sale/result", h.handleGetResult)
	mux.HandleFunc("/flash-sale/results", h.handleListResults)
}

type preOrderRequest struct {
	TenantID string `json:"tenantId"`
	UserID   string `json:"userId"`
	PlanID   string `json:"planId"`
}

func (h *FlashSaleHandler) handlePreOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	var req preOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.plans.PreOrder(ctx, req.TenantID, req.UserID, req.PlanID)
	if err != nil {
		http.Error(w, err.Error(), statusCodeOf(err))
		return
	}

	writeJSON(w, map[string]string{"hashToken": token})
}

type orderRequest struct {
	TenantID       string `json:"tenantId"`
	UserID         string `json:"userId"`
	PlanID         string `json:"planId"`
	HashToken      string `json:"hashToken"`
	CustomerRemark string `json:"customerRemark"`
	ProviderName   string `json:"providerName"`
}

func (h *FlashSaleHandler) handleOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resultID, err := h.plans.Order(ctx, application.OrderInput{
		TenantID:       req.TenantID,
		UserID:         req.UserID,
		PlanID:         req.PlanID,
		HashToken:      req.HashToken,
		CustomerRemark: req.CustomerRemark,
		ProviderName:   req.ProviderName,
	})
	if err != nil {
		http.Error(w, err.Error(), statusCodeOf(err))
		return
	}

	// 202：下单已受理，结局由客户端轮询 current-result 获知
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"resultId": resultID})
}

func (h *FlashSaleHandler) handleCurrentResult(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	q := r.URL.Query()
	dto, err := h.results.GetCurrent(ctx, q.Get("tenant_id"), q.Get("plan_id"), q.Get("user_id"))
	if err != nil {
		http.Error(w, err.Error(), statusCodeOf(err))
		return
	}
	writeJSON(w, dto)
}

func (h *FlashSaleHandler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	q := r.URL.Query()
	dto, err := h.results.Get(ctx, q.Get("tenant_id"), q.Get("user_id"), q.Get("id"))
	if err != nil {
		http.Error(w, err.Error(), statusCodeOf(err))
		return
	}
	writeJSON(w, dto)
}

func (h *FlashSaleHandler) handleListResults(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	q := r.URL.Query()
	filter := domain.ResultListFilter{}
	if v := q.Get("plan_id"); v != "" {
		filter.PlanID = &v
	}
	if v := q.Get("user_id"); v != "" {
		filter.UserID = &v
	}
	if v := q.Get("status"); v != "" {
		status := domain.FlashSaleResultStatus(v)
		filter.Status = &status
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	dtos, err := h.results.List(ctx, q.Get("tenant_id"), filter)
	if err != nil {
		http.Error(w, err.Error(), statusCodeOf(err))
		return
	}
	writeJSON(w, dtos)
}

func extractTraceContext(r *http.Request) context.Context {
	propagator := otel.GetTextMapPropagator()
	return propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

// statusCodeOf 把领域错误映射到 HTTP 状态码
func statusCodeOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrResultNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotResultOwner):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPlanNotInProgress),
		errors.Is(err, domain.ErrInvalidPreOrderToken),
		errors.Is(err, domain.ErrInsufficientInventory):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
