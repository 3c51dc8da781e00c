package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	NextSequence(ctx context.Context, prefix string, year int) (int64, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindOrder(ctx context.Context, id string) (*models.Order, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	SalesData(ctx context.Context, window SalesWindow) ([]SalesRow, error)
	DeleteOrder(ctx context.Context, id string) (int64, error)
	UnlinkProduct(ctx context.Context, productID uuid.UUID) (int64, error)
}

// RecipeSource resolves recipe lines inside the order's transaction.
type RecipeSource interface {
	LinesForTx(ctx context.Context, tx *gorm.DB, productIDs []uuid.UUID) ([]models.RecipeLine, error)
}

// StockLedger applies store-evaluated stock deltas inside the order's transaction.
type StockLedger interface {
	AdjustTx(ctx context.Context, tx *gorm.DB, inventoryID uuid.UUID, delta decimal.Decimal) error
}
