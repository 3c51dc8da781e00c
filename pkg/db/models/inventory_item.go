package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/counterpos-backend/pkg/enums"
)

// InventoryItem is one ingredient with its stock held in base units.
type InventoryItem struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name               string              `gorm:"column:name;not null;uniqueIndex" json:"name"`
	CurrentStock       decimal.Decimal     `gorm:"column:current_stock;type:numeric(14,3);not null;default:0" json:"current_stock"`
	MinimumThreshold   decimal.Decimal     `gorm:"column:minimum_threshold;type:numeric(14,3);not null;default:0" json:"minimum_threshold"`
	Unit               string              `gorm:"column:unit;not null" json:"unit"`
	ContainerType      enums.ContainerType `gorm:"column:container_type;not null;default:'direct'" json:"container_type"`
	NumberOfContainers decimal.Decimal     `gorm:"column:number_of_containers;type:numeric(14,3);not null;default:1" json:"number_of_containers"`
	ContainerQuantity  decimal.NullDecimal `gorm:"column:container_quantity;type:numeric(14,3)" json:"container_quantity"`
	SecondaryUnit      *string             `gorm:"column:secondary_unit" json:"secondary_unit,omitempty"`
	QuantityPerUnit    decimal.NullDecimal `gorm:"column:quantity_per_unit;type:numeric(14,3)" json:"quantity_per_unit"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (InventoryItem) TableName() string { return "inventory_items" }

func (i *InventoryItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// IsLowStock reports current_stock <= minimum_threshold.
func (i InventoryItem) IsLowStock() bool {
	return i.CurrentStock.LessThanOrEqual(i.MinimumThreshold)
}
