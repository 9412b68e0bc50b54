package infrastructure

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/zhangzw218/EShop/internal/service/payments/domain"
)

// RefundModel 是退款投影的存储模型
type RefundModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	TenantID       string `gorm:"size:36;index:idx_refund_tenant"`
	PaymentID      string `gorm:"size:36;index"`
	DisplayReason  string `gorm:"size:512"`
	CustomerRemark string `gorm:"size:512"`
	StaffRemark    string `gorm:"size:512"`
	RefundedAmount int64
	CompletedTime  sql.NullTime

	Items []RefundItemModel `gorm:"foreignKey:RefundID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RefundModel) TableName() string { return "payment_refund" }

// RefundItemModel 是退款明细的存储模型
type RefundItemModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	RefundID      string `gorm:"size:36;index"`
	PaymentItemID string `gorm:"size:36"`
	StoreID       string `gorm:"size:36;index"`
	OrderID       string `gorm:"size:36;index"`
	Amount        int64
	Quantity      int
}

func (RefundItemModel) TableName() string { return "payment_refund_item" }

// PaymentModel 是支付单的最小投影
type PaymentModel struct {
	ID       string `gorm:"primaryKey;size:36"`
	TenantID string `gorm:"size:36;index"`
	OrderID  string `gorm:"size:36;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PaymentModel) TableName() string { return "payment" }

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&PaymentModel{}, &RefundModel{}, &RefundItemModel{})
}

func toRefundModel(refund *domain.Refund) *RefundModel {
	model := &RefundModel{
		ID:             refund.ID,
		TenantID:       refund.TenantID,
		PaymentID:      refund.PaymentID,
		DisplayReason:  refund.DisplayReason,
		CustomerRemark: refund.CustomerRemark,
		StaffRemark:    refund.StaffRemark,
		RefundedAmount: refund.RefundedAmount,
	}
	if refund.CompletedTime != nil {
		model.CompletedTime = sql.NullTime{Time: *refund.CompletedTime, Valid: true}
	}
	for _, item := range refund.Items {
		model.Items = append(model.Items, RefundItemModel{
			ID:            item.ID,
			RefundID:      refund.ID,
			PaymentItemID: item.PaymentItemID,
			StoreID:       item.StoreID,
			OrderID:       item.OrderID,
			Amount:        item.Amount,
			Quantity:      item.Quantity,
		})
	}
	return model
}

func toDomainRefund(model *RefundModel) *domain.Refund {
	refund := &domain.Refund{
		ID:             model.ID,
		TenantID:       model.TenantID,
		PaymentID:      model.PaymentID,
		DisplayReason:  model.DisplayReason,
		CustomerRemark: model.CustomerRemark,
		StaffRemark:    model.StaffRemark,
		RefundedAmount: model.RefundedAmount,
	}
	if model.CompletedTime.Valid {
		t := model.CompletedTime.Time
		refund.CompletedTime = &t
	}
	for _, item := range model.Items {
		refund.Items = append(refund.Items, domain.RefundItem{
			ID:            item.ID,
			PaymentItemID: item.PaymentItemID,
			StoreID:       item.StoreID,
			OrderID:       item.OrderID,
			Amount:        item.Amount,
			Quantity:      item.Quantity,
		})
	}
	return refund
}
