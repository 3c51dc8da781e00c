package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecipeLine is one bill-of-materials entry: base units of an ingredient consumed per
// unit of product sold.
type RecipeLine struct {
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;primaryKey" json:"product_id"`
	InventoryID  uuid.UUID       `gorm:"column:inventory_id;type:uuid;primaryKey;index" json:"inventory_id"`
	QuantityUsed decimal.Decimal `gorm:"column:quantity_used;type:numeric(14,3);not null" json:"quantity_used"`
	Size         string          `gorm:"column:size;not null;default:''" json:"size"`
}

func (RecipeLine) TableName() string { return "recipe_lines" }
