package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
)

// CartLine is one submitted line. Price is the agreed unit price at checkout.
type CartLine struct {
	ProductID uuid.UUID
	Quantity  int
	Price     decimal.Decimal
}

// PlaceOrderInput carries a checkout submission.
type PlaceOrderInput struct {
	Lines      []CartLine
	AmountPaid decimal.Decimal
	UserID     string
}

// SummaryItem is an order line joined with product display data. Product fields are
// empty once the product was purged.
type SummaryItem struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   *uuid.UUID      `json:"product_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size"`
	ImageURL    *string         `json:"image_url,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderSummary is returned by PlaceOrder and GetOrder.
type OrderSummary struct {
	Order      models.Order    `json:"order"`
	Items      []SummaryItem   `json:"items"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Change     decimal.Decimal `json:"change"`
}

// SalesRow aggregates sold lines per product and sale-time price.
type SalesRow struct {
	ProductID   *uuid.UUID      `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Volume      int64           `json:"volume"`
	TotalSales  decimal.Decimal `json:"total_sales"`
}

// SalesWindow bounds GetSalesData. Nil ends are open.
type SalesWindow struct {
	From *time.Time
	To   *time.Time
}

// consumption is the aggregated stock delta for one ingredient.
type consumption struct {
	InventoryID uuid.UUID
	Amount      decimal.Decimal
}
