package application

import (
	"time"

	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
)

// FlashSaleResultDTO 是对外暴露的结果视图
type FlashSaleResultDTO struct {
	ID                   string    `json:"id"`
	StoreID              string    `json:"storeId"`
	PlanID               string    `json:"planId"`
	UserID               string    `json:"userId"`
	Status               string    `json:"status"`
	OrderID              string    `json:"orderId,omitempty"`
	ReducedInventoryTime time.Time `json:"reducedInventoryTime"`
}

func toResultDTO(r *domain.FlashSaleResult) *FlashSaleResultDTO {
	if r == nil {
		return nil
	}
	return &FlashSaleResultDTO{
		ID:                   r.ID,
		StoreID:              r.StoreID,
		PlanID:               r.PlanID,
		UserID:               r.UserID,
		Status:               string(r.Status),
		OrderID:              r.OrderID,
		ReducedInventoryTime: r.ReducedInventoryTime,
	}
}
