package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is an immutable sale. ID is human readable, e.g. ORD-2026-000042.
type Order struct {
	ID         string          `gorm:"column:id;primaryKey" json:"id"`
	Total      decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	AmountPaid decimal.Decimal `gorm:"column:amount_paid;type:numeric(12,2);not null" json:"amount_paid"`
	Change     decimal.Decimal `gorm:"column:change_due;type:numeric(12,2);not null" json:"change"`
	UserID     string          `gorm:"column:user_id;not null;default:''" json:"user_id"`
	CreatedAt  time.Time       `gorm:"column:created_at;not null;index" json:"created_at"`
	Items      []OrderItem     `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (Order) TableName() string { return "orders" }
