package infrastructure

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
)

// FlashSaleResultModel 对应数据库中的 flash_sale_result 表
type FlashSaleResultModel struct {
	// ID 由事件指定，不用自增主键
	ID       string `gorm:"primaryKey;size:36"`
	TenantID string `gorm:"size:36;index:idx_plan_user,priority:1"`
	StoreID  string `gorm:"size:36;index"`
	PlanID   string `gorm:"size:36;index:idx_plan_user,priority:2"`
	UserID   string `gorm:"size:36;index:idx_plan_user,priority:3"`

	Status               string         `gorm:"size:16;index:idx_plan_user,priority:4"`
	OrderID              sql.NullString `gorm:"size:36;index"`
	ReducedInventoryTime time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (FlashSaleResultModel) TableName() string {
	return "flash_sale_result"
}

// FlashSalePlanModel 对应 flash_sale_plan 表，本服务只读
type FlashSalePlanModel struct {
	ID           string `gorm:"primaryKey;size:36"`
	TenantID     string `gorm:"size:36;index"`
	StoreID      string `gorm:"size:36"`
	ProductID    string `gorm:"size:36"`
	ProductSkuID string `gorm:"size:36"`

	BeginTime  time.Time `gorm:"index"`
	EndTime    time.Time `gorm:"index"`
	TotalCount int64
	Published  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (FlashSalePlanModel) TableName() string {
	return "flash_sale_plan"
}

// OutboxTaskModel 对应 flash_sale_outbox 表
type OutboxTaskModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	Kind      string `gorm:"size:64"`
	Payload   []byte `gorm:"type:blob"`
	Status    string `gorm:"size:16;index"`
	Retries   int
	LastError string `gorm:"size:512"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (OutboxTaskModel) TableName() string {
	return "flash_sale_outbox"
}

// AutoMigrate 建表，开发和测试环境使用；线上走迁移脚本
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&FlashSaleResultModel{},
		&FlashSalePlanModel{},
		&OutboxTaskModel{},
	)
}

// ---- mapper ----

func toResultModel(r *domain.FlashSaleResult) *FlashSaleResultModel {
	m := &FlashSaleResultModel{
		ID:                   r.ID,
		TenantID:             r.TenantID,
		StoreID:              r.StoreID,
		PlanID:               r.PlanID,
		UserID:               r.UserID,
		Status:               string(r.Status),
		ReducedInventoryTime: r.ReducedInventoryTime,
	}
	if r.OrderID != "" {
		m.OrderID = sql.NullString{String: r.OrderID, Valid: true}
	}
	return m
}

func toDomainResult(m *FlashSaleResultModel) *domain.FlashSaleResult {
	r := &domain.FlashSaleResult{
		ID:                   m.ID,
		TenantID:             m.TenantID,
		StoreID:              m.StoreID,
		PlanID:               m.PlanID,
		UserID:               m.UserID,
		Status:               domain.FlashSaleResultStatus(m.Status),
		ReducedInventoryTime: m.ReducedInventoryTime,
	}
	if m.OrderID.Valid {
		r.OrderID = m.OrderID.String
	}
	return r
}

func toDomainPlan(m *FlashSalePlanModel) *domain.FlashSalePlan {
	return &domain.FlashSalePlan{
		ID:           m.ID,
		TenantID:     m.TenantID,
		StoreID:      m.StoreID,
		ProductID:    m.ProductID,
		ProductSkuID: m.ProductSkuID,
		BeginTime:    m.BeginTime,
		EndTime:      m.EndTime,
		TotalCount:   m.TotalCount,
		Published:    m.Published,
	}
}

func toOutboxModel(t *port.OutboxTask) *OutboxTaskModel {
	return &OutboxTaskModel{
		ID:        t.ID,
		Kind:      t.Kind,
		Payload:   t.Payload,
		Status:    string(t.Status),
		Retries:   t.Retries,
		LastError: t.LastError,
	}
}

func toDomainOutboxTask(m *OutboxTaskModel) *port.OutboxTask {
	return &port.OutboxTask{
		ID:        m.ID,
		Kind:      m.Kind,
		Payload:   m.Payload,
		Status:    port.OutboxTaskStatus(m.Status),
		Retries:   m.Retries,
		LastError: m.LastError,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
