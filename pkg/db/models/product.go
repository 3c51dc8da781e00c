package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is one size variant of a menu item. (name, size) is unique.
type Product struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name       string          `gorm:"column:name;not null;uniqueIndex:idx_products_name_size" json:"name"`
	Size       string          `gorm:"column:size;not null;default:'';uniqueIndex:idx_products_name_size" json:"size"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	ImageURL   *string         `gorm:"column:image_url" json:"image_url,omitempty"`
	CategoryID *uuid.UUID      `gorm:"column:category_id;type:uuid" json:"category_id,omitempty"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
